package relational

// Catalog queries over information_schema. All of them are parameterized and
// ordered so output is stable across calls.
const (
	listSchemasSQL = `SELECT schema_name FROM information_schema.schemata ORDER BY schema_name`

	listTablesSQL = `
    SELECT table_name, table_type
    FROM information_schema.tables
    WHERE table_schema = $1
    ORDER BY table_name`

	describeTableSQL = `
    SELECT
        column_name,
        data_type,
        is_nullable,
        column_default,
        character_maximum_length
    FROM information_schema.columns
    WHERE table_schema = $1 AND table_name = $2
    ORDER BY ordinal_position`

	foreignKeysSQL = `
    SELECT
        tc.constraint_name,
        kcu.column_name as fk_column,
        ccu.table_schema as referenced_schema,
        ccu.table_name as referenced_table,
        ccu.column_name as referenced_column
    FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage kcu
        ON tc.constraint_name = kcu.constraint_name
        AND tc.table_schema = kcu.table_schema
    JOIN information_schema.referential_constraints rc
        ON tc.constraint_name = rc.constraint_name
    JOIN information_schema.constraint_column_usage ccu
        ON rc.unique_constraint_name = ccu.constraint_name
    WHERE tc.constraint_type = 'FOREIGN KEY'
        AND tc.table_schema = $1
        AND tc.table_name = $2
    ORDER BY tc.constraint_name, kcu.ordinal_position`

	// explicitRelationshipsSQL lists declared foreign keys as confidence-1
	// relationship rows, the strongest evidence of a link.
	explicitRelationshipsSQL = `
    SELECT
        kcu.column_name,
        ccu.table_name as foreign_table,
        ccu.column_name as foreign_column,
        'Explicit FK' as relationship_type,
        1 as confidence_level
    FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage kcu
        ON tc.constraint_name = kcu.constraint_name
        AND tc.table_schema = kcu.table_schema
    JOIN information_schema.constraint_column_usage ccu
        ON ccu.constraint_name = tc.constraint_name
        AND ccu.table_schema = tc.table_schema
    WHERE tc.constraint_type = 'FOREIGN KEY'
        AND tc.table_schema = $1
        AND tc.table_name = $2`

	// impliedRelationshipsSQL infers foreign-key-like links from column
	// naming and type matches. Source columns are the ID-like ones (*id,
	// *_id, *_fk); candidate targets are every other table in the schema
	// whose "id" column, or a column sharing the source's name, matches the
	// source's data type. Confidence ranks by pattern specificity, lower
	// being stronger; self-references are excluded in the join.
	impliedRelationshipsSQL = `
    WITH source_columns AS (
        SELECT column_name, data_type
        FROM information_schema.columns
        WHERE table_schema = $1
        AND table_name = $2
        AND (
            column_name LIKE '%id'
            OR column_name LIKE '%\_id'
            OR column_name LIKE '%\_fk'
        )
    ),
    potential_references AS (
        SELECT DISTINCT
            sc.column_name as source_column,
            sc.data_type as source_type,
            t.table_name as target_table,
            c.column_name as target_column,
            c.data_type as target_type,
            CASE
                WHEN sc.column_name = t.table_name || '_id'
                    AND sc.data_type = c.data_type THEN 2
                WHEN sc.column_name LIKE '%\_id'
                    AND sc.data_type = c.data_type THEN 3
                WHEN sc.column_name LIKE '%' || t.table_name || '%'
                    AND sc.data_type = c.data_type THEN 4
                WHEN sc.column_name LIKE '%id'
                    AND sc.data_type = c.data_type THEN 5
            END as confidence_level
        FROM source_columns sc
        CROSS JOIN information_schema.tables t
        JOIN information_schema.columns c
            ON c.table_schema = t.table_schema
            AND c.table_name = t.table_name
            AND (c.column_name = 'id' OR c.column_name = sc.column_name)
        WHERE t.table_schema = $3
            AND t.table_name != $4
    )
    SELECT
        source_column as column_name,
        target_table as foreign_table,
        target_column as foreign_column,
        CASE
            WHEN confidence_level = 2 THEN 'Strong implied relationship (exact match)'
            WHEN confidence_level = 3 THEN 'Strong implied relationship (_id pattern)'
            WHEN confidence_level = 4 THEN 'Likely implied relationship (name match)'
            ELSE 'Possible implied relationship'
        END as relationship_type,
        confidence_level
    FROM potential_references
    WHERE confidence_level IS NOT NULL
    ORDER BY confidence_level, source_column`
)
