package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsight/spendsight/internal/model"
)

func TestDefault(t *testing.T) {
	tx := Default()
	assert.Len(t, tx.Categories(), 22, "21 categories plus Uncategorized")

	_, ok := tx.Lookup(model.Uncategorized)
	assert.True(t, ok)
}

func TestValidate(t *testing.T) {
	tx := Default()

	tests := []struct {
		name            string
		cat, sub        string
		wantCat, wantSub string
		wantErr         error
	}{
		{"exact", "Shopping", "Online Shopping", "Shopping", "Online Shopping", nil},
		{"case and spacing", "  shopping ", "online   SHOPPING", "Shopping", "Online Shopping", nil},
		{"no subcategory", "Taxes", "", "Taxes", "", nil},
		{"uncategorized", "uncategorized", "", model.Uncategorized, "", nil},
		{"unknown category", "Groceriez", "Supermarket", "", "", ErrUnknownCategory},
		{"missing subcategory", "Transportation", "", "", "", ErrMissingSubcategory},
		{"wrong subcategory", "Transportation", "Restaurants", "", "", ErrUnknownSubcategory},
		{"unexpected subcategory", "Taxes", "Federal", "", "", ErrUnexpectedSubcategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, sub, err := tx.Validate(tt.cat, tt.sub)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCat, cat)
			assert.Equal(t, tt.wantSub, sub)
		})
	}
}

func TestNew_AddsUncategorized(t *testing.T) {
	tx, err := New([]Category{{Name: "Food"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Food", model.Uncategorized}, tx.Names())
}

func TestNew_Rejects(t *testing.T) {
	_, err := New([]Category{{Name: "Food"}, {Name: " food "}})
	assert.ErrorContains(t, err, "duplicate category")

	_, err = New([]Category{{Name: ""}})
	assert.Error(t, err)

	_, err = New([]Category{{Name: "Food", Subcategories: []string{"Snacks", "snacks"}}})
	assert.ErrorContains(t, err, "duplicate subcategory")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, Default().Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Categories(), got.Categories())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("categories: []\n"), 0o644))
	_, err = Load(empty)
	assert.ErrorContains(t, err, "no categories")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("categories: [\n"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "parsing taxonomy")
}

func TestPrompt(t *testing.T) {
	p := Default().Prompt()
	assert.Contains(t, p, "- Transportation (subcategory required: Gas/Fuel, Rideshare")
	assert.Contains(t, p, "- Taxes (no subcategory)")
	assert.Contains(t, p, "e.g. AMAZON.COM")
}
