package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rosterDataset() Dataset {
	data := Dataset{Headers: []string{"Pattern", "Students", "Presentation"}}
	data.Append("Factory", "Amina Belkacem, Yacine Haddad", "2025-03-01")
	data.Append("Observer", "Sarah Smith")
	return data
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(rosterDataset())
	require.NoError(t, err)
	assert.Equal(t, "Pattern,Students,Presentation\nFactory,\"Amina Belkacem, Yacine Haddad\",2025-03-01\nObserver,Sarah Smith,\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(rosterDataset(), "Design pattern assignments")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}
