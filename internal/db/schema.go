package db

// SchemaSQL contains the archive schema initialization SQL.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS conversation SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS title ON conversation TYPE string;
    DEFINE FIELD IF NOT EXISTS system_prompt ON conversation TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS messages ON conversation TYPE array<object> FLEXIBLE;
    -- Note: Must REMOVE then DEFINE to ensure FLEXIBLE is set (IF NOT EXISTS won't update existing field)
    REMOVE FIELD IF EXISTS messages.* ON conversation;
    DEFINE FIELD messages.* ON conversation TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS message_count ON conversation TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS archived_at ON conversation TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS conversation_archived_at ON conversation FIELDS archived_at;
    DEFINE ANALYZER IF NOT EXISTS conversation_analyzer TOKENIZERS class FILTERS lowercase, ascii, snowball(english);
    DEFINE INDEX IF NOT EXISTS conversation_title_ft ON conversation FIELDS title FULLTEXT ANALYZER conversation_analyzer BM25;
`
