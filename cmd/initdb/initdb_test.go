package initdb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tally/cmd/initdb"
)

func TestInitdbCommand_Metadata(t *testing.T) {
	assert.Equal(t, "initdb", initdb.Cmd.Use)
	assert.Contains(t, initdb.Cmd.Short, "Create the ledger database")
	assert.NotNil(t, initdb.Cmd.RunE)
	assert.NotNil(t, initdb.Cmd.Flags().Lookup("seed"))
}
