package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- STREAM SESSION TABLE (capture log root)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS stream_session SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON stream_session TYPE string;
    DEFINE FIELD IF NOT EXISTS prompt ON stream_session TYPE string;
    DEFINE FIELD IF NOT EXISTS flavor ON stream_session TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON stream_session TYPE string DEFAULT "initializing";
    DEFINE FIELD IF NOT EXISTS project_id ON stream_session TYPE option<string>;
    -- Task snapshots, refreshed on task transitions
    DEFINE FIELD IF NOT EXISTS tasks ON stream_session FLEXIBLE TYPE option<array>;
    DEFINE FIELD IF NOT EXISTS created_at ON stream_session TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON stream_session TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS stream_session_user ON stream_session FIELDS user_id;

    -- ==========================================================================
    -- STREAM CHUNK TABLE (append-only)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS stream_chunk SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS session_id ON stream_chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS task_id ON stream_chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS task_title ON stream_chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS agent ON stream_chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS seq ON stream_chunk TYPE int;
    DEFINE FIELD IF NOT EXISTS content ON stream_chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS kind ON stream_chunk TYPE string DEFAULT "text";
    DEFINE FIELD IF NOT EXISTS metadata ON stream_chunk FLEXIBLE TYPE option<object>;
    DEFINE FIELD IF NOT EXISTS created_at ON stream_chunk TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS stream_chunk_session ON stream_chunk FIELDS session_id;

    -- ==========================================================================
    -- STREAM INSIGHT TABLE (append-only telemetry)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS stream_insight SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS session_id ON stream_insight TYPE string;
    DEFINE FIELD IF NOT EXISTS agent ON stream_insight TYPE string;
    DEFINE FIELD IF NOT EXISTS message ON stream_insight TYPE string;
    DEFINE FIELD IF NOT EXISTS kind ON stream_insight TYPE string DEFAULT "progress";
    DEFINE FIELD IF NOT EXISTS metadata ON stream_insight FLEXIBLE TYPE option<object>;
    DEFINE FIELD IF NOT EXISTS created_at ON stream_insight TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS stream_insight_session ON stream_insight FIELDS session_id;

    -- ==========================================================================
    -- PROJECT TABLE (materialized container)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS project SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON project TYPE string;
    DEFINE FIELD IF NOT EXISTS title ON project TYPE string;
    DEFINE FIELD IF NOT EXISTS flavor ON project TYPE string;
    DEFINE FIELD IF NOT EXISTS description ON project TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS metadata ON project FLEXIBLE TYPE option<object>;
    DEFINE FIELD IF NOT EXISTS created_at ON project TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON project TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS project_user ON project FIELDS user_id;

    -- ==========================================================================
    -- DB SESSION TABLE (persisted unit of work under a project)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS db_session SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS project ON db_session TYPE record<project>;
    DEFINE FIELD IF NOT EXISTS name ON db_session TYPE string;
    DEFINE FIELD IF NOT EXISTS description ON db_session TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS created_at ON db_session TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS db_session_project ON db_session FIELDS project;

    -- ==========================================================================
    -- QUERY TABLE (one per generation phase)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS query SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS session ON query TYPE record<db_session>;
    DEFINE FIELD IF NOT EXISTS project ON query TYPE record<project>;
    DEFINE FIELD IF NOT EXISTS text ON query TYPE string;
    DEFINE FIELD IF NOT EXISTS kind ON query TYPE string;
    DEFINE FIELD IF NOT EXISTS result ON query FLEXIBLE TYPE object;
    DEFINE FIELD IF NOT EXISTS result_format ON query TYPE string DEFAULT "markdown";
    DEFINE FIELD IF NOT EXISTS success ON query TYPE bool DEFAULT true;
    DEFINE FIELD IF NOT EXISTS created_at ON query TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS query_session ON query FIELDS session;
    DEFINE INDEX IF NOT EXISTS query_project ON query FIELDS project;
`
