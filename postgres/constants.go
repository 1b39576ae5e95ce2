// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

const (
	// SQL table names:
	sessionTable = "omero_session"

	// SQL column names:
	sessionIDColumn      = sessionTable + ".session_id"
	sessionKeyColumn     = sessionTable + ".omero_session_key"
	sessionExpiresColumn = sessionTable + ".expires"
)
