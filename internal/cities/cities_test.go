package cities

import (
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/choroshape/internal/fetcher"
)

func writePoints(t *testing.T, pts map[string][2]float64, order []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cities.shp")
	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("CITY_NM", 40),
		shp.NumberField("POP", 10),
	}))
	for i, name := range order {
		p := pts[name]
		row := int(w.Write(&shp.Point{X: p[0], Y: p[1]}))
		require.NoError(t, w.WriteAttribute(row, 0, name))
		require.NoError(t, w.WriteAttribute(row, 1, i*1000))
	}
	w.Close()
	return path
}

func TestLoad(t *testing.T) {
	path := writePoints(t, map[string][2]float64{
		"Austin":  {-97.74, 30.27},
		"Houston": {-95.37, 29.76},
	}, []string{"Austin", "Houston"})

	cs, err := Load(path, "city_nm")
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, "Austin", cs[0].Name)
	assert.InDelta(t, -97.74, cs[0].X, 1e-9)
	assert.InDelta(t, 30.27, cs[0].Y, 1e-9)
	assert.Equal(t, DefaultLabel(), cs[1].Label)
}

func TestLoad_Errors(t *testing.T) {
	path := writePoints(t, map[string][2]float64{"Waco": {0, 0}}, []string{"Waco"})
	_, err := Load(path, "NAME")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no NAME field")

	_, err = Load(filepath.Join(t.TempDir(), "nope.shp"), "NAME")
	require.Error(t, err)
}

func TestPlace(t *testing.T) {
	tests := []struct {
		pos  Position
		want Placement
	}{
		{TopLeft, Placement{X: 0.4, Y: 0.52, H: AlignRight, V: AlignBottom}},
		{BotLeft, Placement{X: 0.4, Y: 0.48, H: AlignRight, V: AlignTop}},
		{TopRight, Placement{X: 0.6, Y: 0.52, H: AlignLeft, V: AlignBottom}},
		{BotRight, Placement{X: 0.6, Y: 0.48, H: AlignLeft, V: AlignTop}},
		{"", Placement{X: 0.4, Y: 0.52, H: AlignRight, V: AlignBottom}},
	}
	for _, tt := range tests {
		t.Run(string(tt.pos), func(t *testing.T) {
			got := Label{Position: tt.pos, DX: 0.1, DY: 0.02}.Place(0.5, 0.5)
			assert.InDelta(t, tt.want.X, got.X, 1e-12)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-12)
			assert.Equal(t, tt.want.H, got.H)
			assert.Equal(t, tt.want.V, got.V)
		})
	}
}

func TestLoadLabelSpecs(t *testing.T) {
	tbl := fetcher.NewTable([]string{"name", "where", "x", "y"}, [][]string{
		{"Dallas", "top_right", "0.01", "0.02"},
		{" Fort Worth ", "BOT_LEFT", ".005", ".005"},
	})
	specs, err := LoadLabelSpecs(tbl)
	require.NoError(t, err)
	assert.Equal(t, Label{Position: TopRight, DX: 0.01, DY: 0.02}, specs["dallas"])
	assert.Equal(t, BotLeft, specs["fort worth"].Position)
}

func TestLoadLabelSpecs_Errors(t *testing.T) {
	tests := []struct {
		name string
		tbl  *fetcher.Table
		want string
	}{
		{"columns", fetcher.NewTable([]string{"a", "b"}, nil), "4 columns"},
		{"short row", fetcher.NewTable([]string{"a", "b", "c", "d"}, [][]string{{"x", "top_left"}}), "short"},
		{"position", fetcher.NewTable([]string{"a", "b", "c", "d"}, [][]string{{"x", "middle", "1", "1"}}), "unknown position"},
		{"dx", fetcher.NewTable([]string{"a", "b", "c", "d"}, [][]string{{"x", "top_left", "far", "1"}}), "dx"},
		{"dy", fetcher.NewTable([]string{"a", "b", "c", "d"}, [][]string{{"x", "top_left", "1", ""}}), "dy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadLabelSpecs(tt.tbl)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTexasLabelSpecs(t *testing.T) {
	specs, err := TexasLabelSpecs()
	require.NoError(t, err)
	assert.Len(t, specs, 16)
	assert.Equal(t, Label{Position: BotLeft, DX: 0.0065, DY: 0.004}, specs["laredo"])
	assert.Equal(t, Label{Position: BotRight, DX: 0.024, DY: 0.005}, specs["corpus christi"])
	assert.Equal(t, BotLeft, specs["el paso"].Position)
}

func TestApplyLabels(t *testing.T) {
	specs, err := TexasLabelSpecs()
	require.NoError(t, err)
	cs := []City{{Name: "Galveston"}, {Name: "Marfa", Label: DefaultLabel()}}
	ApplyLabels(cs, specs)
	assert.Equal(t, BotRight, cs[0].Label.Position)
	assert.Equal(t, DefaultLabel(), cs[1].Label)
}
