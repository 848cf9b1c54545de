/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractVersion(t *testing.T) {
	assert.Equal(t, "00001", extractVersion("00001_initial_schema.up.sql"))
	assert.Equal(t, "00002", extractVersion("00002.up.sql"))
}

func TestSplitSQLStatements(t *testing.T) {
	script := `-- leading comment
CREATE TABLE a (id INT); -- trailing
INSERT INTO a VALUES (';not a split');

CREATE INDEX idx ON a (id);
`

	stmts := splitSQLStatements(script)
	require.Len(t, stmts, 3)
	assert.Equal(t, "CREATE TABLE a (id INT)", stmts[0])
	assert.Equal(t, "INSERT INTO a VALUES (';not a split')", stmts[1])
	assert.Equal(t, "CREATE INDEX idx ON a (id)", stmts[2])
}

func TestMigrationFilesAreEmbedded(t *testing.T) {
	names, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "00001_initial_schema.up.sql", names[0])

	content, err := migrationsFS.ReadFile("migrations/" + names[0])
	require.NoError(t, err)

	stmts := splitSQLStatements(string(content))
	assert.Len(t, stmts, 6)
}
