// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides shared CUE parsing utilities.
//
// It consolidates the schema-unify-decode pattern used by the fedfile and
// config packages:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify with the schema
//  3. Validate and decode into a Go struct
//
// # Usage
//
//	//go:embed fedfile_schema.cue
//	var schemaBytes []byte
//
//	result, err := cueutil.Decode[Fedfile](
//	    schemaBytes,
//	    userFileBytes,
//	    "#Fedfile",
//	    cueutil.WithFilename("fedfile.cue"),
//	)
//	if err != nil {
//	    return nil, err // error includes the CUE path to the bad field
//	}
//	return result.Value, nil
package cueutil
