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
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func TestExecBatch_EmptyBatchDoesNotSend(t *testing.T) {
	q := &fakeQuerier{}

	require.NoError(t, execBatch(context.Background(), q, &pgx.Batch{}, "test"))
	require.Empty(t, q.batches)
}

func TestExecBatch_ExecErrorIncludesCommandIndexAndCloses(t *testing.T) {
	batch := &pgx.Batch{}
	batch.Queue("SELECT 1")
	batch.Queue("SELECT 2")
	batch.Queue("SELECT 3")

	br := &fakeBatchResults{execErrAt: 1, execErr: errBoom}
	q := &fakeQuerier{results: br}

	err := execBatch(context.Background(), q, batch, "op-name")
	require.Error(t, err)
	require.ErrorIs(t, err, errBoom)
	require.Contains(t, err.Error(), "op-name batch exec (command 1)")
	require.Equal(t, 1, br.closeCalls)
	require.Equal(t, 2, br.execCalls)
}

func TestExecBatch_CloseErrorReturnedWhenExecSucceeds(t *testing.T) {
	batch := &pgx.Batch{}
	batch.Queue("SELECT 1")

	br := &fakeBatchResults{closeErr: errCloseFailed}
	q := &fakeQuerier{results: br}

	err := execBatch(context.Background(), q, batch, "op-name")
	require.Error(t, err)
	require.Contains(t, err.Error(), "op-name batch close: close failed")
	require.Equal(t, 1, br.closeCalls)
}
