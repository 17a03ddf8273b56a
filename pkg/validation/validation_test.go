package validation

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/parkstats/pkg/pagination"
)

type probe struct {
	Paths  []string `validate:"required_without=Cursor,omitempty,min=1,dive,upload_ext"`
	Month  string   `validate:"omitempty,month"`
	Format string   `validate:"omitempty,oneof=csv xlsx"`
	Cursor string   `validate:"omitempty,cursor"`
}

func TestValidateStruct(t *testing.T) {
	require.Empty(t, ValidateStruct(probe{Paths: []string{"a.xlsx", "b.CSV"}, Month: "2024-01"}))

	require.Equal(t, "VALIDATION: paths is required (or supply cursor)", ValidateStruct(probe{}))
	require.Contains(t, ValidateStruct(probe{Paths: []string{"notes.txt"}}), "files must be spreadsheets")
	require.Equal(t, "VALIDATION: month must look like 2024-01", ValidateStruct(probe{Paths: []string{"a.xls"}, Month: "2024-13"}))
	require.Contains(t, ValidateStruct(probe{Paths: []string{"a.xls"}, Format: "pdf"}), "format must be one of csv xlsx")
	require.Contains(t, ValidateStruct(probe{Cursor: "!!!"}), "CURSOR_INVALID")

	tok, err := pagination.EncodeCursor(pagination.Cursor{P: []string{"a.xlsx"}, Ps: 10})
	require.NoError(t, err)
	require.Empty(t, ValidateStruct(probe{Cursor: tok}))
}
