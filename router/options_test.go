// Copyright 2025 The Crest Authors
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


//go:build !integration

package router

import (
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithH2C(t *testing.T) {
	t.Parallel()
	r, err := New(WithH2C(true))
	require.NoError(t, err)
	assert.True(t, r.enableH2C)
}

func TestWithServerTimeouts(t *testing.T) {
	t.Parallel()
	readHeader := 10 * time.Second
	read := 30 * time.Second
	write := 60 * time.Second
	idle := 120 * time.Second
	r, err := New(WithServerTimeouts(readHeader, read, write, idle))
	require.NoError(t, err)
	require.NotNil(t, r.serverTimeouts)
	assert.Equal(t, readHeader, r.serverTimeouts.readHeader)
	assert.Equal(t, read, r.serverTimeouts.read)
	assert.Equal(t, write, r.serverTimeouts.write)
	assert.Equal(t, idle, r.serverTimeouts.idle)
}

func TestWithServerTimeouts_Invalid(t *testing.T) {
	t.Parallel()
	_, err := New(WithServerTimeouts(time.Second, 0, time.Second, time.Second))
	require.ErrorIs(t, err, ErrServerTimeoutInvalid)
	assert.Panics(t, func() { MustNew(WithServerTimeouts(-1, 1, 1, 1)) })
}

func TestWithLogger_Nil(t *testing.T) {
	t.Parallel()
	r, err := New(WithLogger(nil))
	require.NoError(t, err)
	assert.NotNil(t, r.logger)
}

func TestWithCheckOrigin(t *testing.T) {
	t.Parallel()
	base := &websocket.Upgrader{ReadBufferSize: 512}
	r, err := New(
		WithWebSocketUpgrader(base),
		WithCheckOrigin(func(*http.Request) bool { return true }),
	)
	require.NoError(t, err)
	assert.NotNil(t, r.upgrader.CheckOrigin)
	assert.Equal(t, 512, r.upgrader.ReadBufferSize)
	assert.Nil(t, base.CheckOrigin, "the caller's upgrader is not modified")
}
