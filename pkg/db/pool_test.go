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
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/forceplate/pkg/models"
)

func TestBuildConnURL(t *testing.T) {
	t.Run("explicit url wins", func(t *testing.T) {
		cfg := &models.DatabaseConfig{URL: "postgres://x@y/z", Host: "ignored"}
		assert.Equal(t, "postgres://x@y/z", buildConnURL(cfg))
	})

	t.Run("fields", func(t *testing.T) {
		cfg := &models.DatabaseConfig{
			Host:            "db.local",
			Port:            6543,
			Database:        "forceplate",
			Username:        "plate",
			Password:        "s3cret",
			ApplicationName: "forceplate",
		}

		u, err := url.Parse(buildConnURL(cfg))
		require.NoError(t, err)

		assert.Equal(t, "db.local:6543", u.Host)
		assert.Equal(t, "/forceplate", u.Path)
		assert.Equal(t, "plate", u.User.Username())

		pw, ok := u.User.Password()
		assert.True(t, ok)
		assert.Equal(t, "s3cret", pw)
		assert.Equal(t, models.DefaultSSLMode, u.Query().Get("sslmode"))
		assert.Equal(t, "forceplate", u.Query().Get("application_name"))
	})

	t.Run("default port", func(t *testing.T) {
		u, err := url.Parse(buildConnURL(&models.DatabaseConfig{Host: "h", Database: "d", SSLMode: "disable"}))
		require.NoError(t, err)
		assert.Equal(t, "5432", u.Port())
		assert.Equal(t, "disable", u.Query().Get("sslmode"))
	})
}
