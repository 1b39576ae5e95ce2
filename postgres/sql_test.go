// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueryParams(t *testing.T) {
	params := queryParams{}
	assert.Equal(t, "$1", params.Param("a"))
	assert.Equal(t, "$2", params.Param(17))
	assert.Equal(t, queryParams{"a", 17}, params)
}

func TestBuildSelect(t *testing.T) {
	assert.Equal(t, "SELECT a, b FROM t",
		buildSelect([]string{"a", "b"}, []string{"t"}, nil))
	assert.Equal(t, "SELECT a FROM t, u WHERE x=$1 AND y=$2",
		buildSelect([]string{"a"}, []string{"t", "u"},
			[]string{"x=$1", "y=$2"}))
}

func TestBuildDelete(t *testing.T) {
	assert.Equal(t, "DELETE FROM t", buildDelete("t", nil))
	assert.Equal(t, "DELETE FROM t WHERE x=$1",
		buildDelete("t", []string{"x=$1"}))
}

func TestNullTime(t *testing.T) {
	assert.False(t, timeToNullTime(time.Time{}).Valid)
	assert.True(t, nullTimeToTime(timeToNullTime(time.Time{})).IsZero())

	now := time.Date(2016, 5, 1, 12, 0, 0, 0, time.UTC)
	nt := timeToNullTime(now)
	assert.True(t, nt.Valid)
	assert.Equal(t, now, nullTimeToTime(nt))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "postgres://u:p@localhost/db", normalize("//u:p@localhost/db"))
	assert.Equal(t, "postgres://u:p@localhost/db", normalize("postgres://u:p@localhost/db"))
	assert.Equal(t, "host=localhost", normalize("host=localhost"))
	assert.Equal(t, "", normalize(""))
}
