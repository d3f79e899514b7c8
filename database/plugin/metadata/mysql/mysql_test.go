// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mysql_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z-vasconcelos/flightsurety/database/plugin/metadata/mysql"
)

func TestDSN(t *testing.T) {
	store, err := mysql.New(
		mysql.WithHost("db"),
		mysql.WithUser("surety"),
		mysql.WithPassword("secret"),
	)
	require.NoError(t, err)
	dsn := store.DSN()
	assert.Contains(t, dsn, "surety:secret@tcp(db:3306)/flightsurety")
	assert.Contains(t, dsn, "parseTime=true")

	store, err = mysql.New(mysql.WithDSN("u:p@tcp(h:1)/x"))
	require.NoError(t, err)
	assert.Equal(t, "u:p@tcp(h:1)/x", store.DSN())
}

func TestLiveDatabase(t *testing.T) {
	dsn := os.Getenv("FLIGHTSURETY_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("FLIGHTSURETY_TEST_MYSQL_DSN not set")
	}
	store, err := mysql.New(mysql.WithDSN(dsn))
	require.NoError(t, err)
	require.NoError(t, store.Start())
	defer store.Close()
	require.NoError(t, store.SetJournalCursor("test", 1))
	seq, err := store.GetJournalCursor("test")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)
}
