package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Student", "2024-03-04", "2024-03-05", "Rate"},
		Rows: []map[string]string{
			{"Student": "Jane Poe", "2024-03-04": "present", "2024-03-05": "absent", "Rate": "50.0"},
			{"Student": "John Roe", "2024-03-04": "present", "2024-03-05": "present", "Rate": "100.0"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "Student,2024-03-04,2024-03-05,Rate", lines[0])
	require.Contains(t, lines[1], "Jane Poe")
}

func TestCSVExporterRendersMissingCellsEmpty(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"Student", "2024-03-04"},
		Rows:    []map[string]string{{"Student": "Jane Poe"}},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Equal(t, "Jane Poe,", lines[1])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Attendance 2024-03")
	require.NoError(t, err)
	require.True(t, len(out) > 0)
	require.Equal(t, "%PDF", string(out[:4]))
}

func TestPDFExporterRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{}, "")
	require.Error(t, err)
}
