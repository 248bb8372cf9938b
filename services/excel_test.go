package services

import (
	"bytes"
	"testing"

	"github.com/Mustafaygtbs/CertificateManagement/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStudentSheetSkipsBlankRows(t *testing.T) {
	book := buildWorkbook(t, [][]any{
		{"FirstName", "LastName", "Email", "Phone", "HasCompleted"},
		{" Ada ", "Lovelace", "ada@example.com", "", "yes"},
		{"", "", "", "", ""},
		{"Bob", "", "bob@example.com"},
	})

	rows, skipped, err := ParseStudentSheet(book)
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, rows, 2)
	assert.Equal(t, StudentRow{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", HasCompleted: true}, rows[0])
	assert.Equal(t, StudentRow{FirstName: "Bob", Email: "bob@example.com"}, rows[1])
}

func TestBuildStudentSheetRoundTrip(t *testing.T) {
	data, err := BuildStudentSheet([]models.Student{
		{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", HasCompletedCourse: true},
	}, "Go")
	require.NoError(t, err)

	rows, skipped, err := ParseStudentSheet(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].HasCompleted)
	assert.Equal(t, "Ada", rows[0].FirstName)
}

func TestParseFlag(t *testing.T) {
	for in, want := range map[string]bool{
		"true": true, "TRUE": true, "1": true, "yes": true, "Y": true,
		"false": false, "0": false, "": false, "maybe": false,
	} {
		assert.Equal(t, want, parseFlag(in), in)
	}
}
