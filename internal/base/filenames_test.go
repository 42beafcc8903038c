// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFilename(t *testing.T) {
	testCases := []struct {
		name     string
		fileType FileType
		fileNum  FileNum
		ok       bool
	}{
		{"000042.sst", FileTypeTable, 42, true},
		{"000042.log", FileTypeLog, 42, true},
		{"000042.blob", FileTypeBlob, 42, true},
		{"000042.dbtmp", FileTypeTemp, 42, true},
		{"MANIFEST-000007", FileTypeDescriptor, 7, true},
		{"OPTIONS-000009", FileTypeOptions, 9, true},
		{"OPTIONS-000009.dbtmp", FileTypeTemp, 9, true},
		{"CURRENT", FileTypeCurrent, 0, true},
		{"LOCK", FileTypeDBLock, 0, true},
		{"IDENTITY", FileTypeIdentity, 0, true},
		{"METADB", FileTypeMetaDatabase, 0, true},
		{"LOG", FileTypeInfoLog, 0, true},
		{"LOG.old.12345", FileTypeInfoLog, 0, true},
		// The resolver prefixes candidates with "/" to normalise them.
		{"/000042.sst", FileTypeTable, 42, true},
		{"MANIFEST-", 0, 0, false},
		{"000042.unknown", 0, 0, false},
		{"noextension", 0, 0, false},
		{"abc.sst", 0, 0, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fileType, fileNum, ok := ParseFilename(tc.name)
			require.Equal(t, tc.ok, ok)
			if !tc.ok {
				return
			}
			require.Equal(t, tc.fileType, fileType)
			require.Equal(t, tc.fileNum, fileNum)
		})
	}
}

func TestMakeFilenameRoundTrip(t *testing.T) {
	numbered := []FileType{
		FileTypeLog, FileTypeDescriptor, FileTypeTable, FileTypeTemp,
		FileTypeOptions, FileTypeBlob,
	}
	for _, fileType := range numbered {
		name := MakeFilename(fileType, 271828)
		parsedType, parsedNum, ok := ParseFilename(name)
		require.True(t, ok, "%s", name)
		require.Equal(t, fileType, parsedType, "%s", name)
		require.EqualValues(t, 271828, parsedNum, "%s", name)
	}
}
