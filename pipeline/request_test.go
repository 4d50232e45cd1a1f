package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/assetflow/config"
	"github.com/BaSui01/assetflow/types"
)

func TestNewRequest(t *testing.T) {
	req, err := NewRequest(RequestInput{
		Concept:    "  a puzzle platformer ",
		Assets:     map[string]int{"character": 2, "ui": 0},
		Scripts:    map[string]int{"enemy_ai": 1},
		Language:   "GDScript",
		Extras:     []string{"dialogue"},
		ThreeD:     []string{"character"},
		Procedural: []string{"dungeon"},
		Models:     Models{Image: "flux-pro-1.1"},
	}, defaultTestModels())
	require.NoError(t, err)

	assert.Equal(t, "a puzzle platformer", req.Concept)
	assert.Equal(t, map[AssetType]int{AssetCharacter: 2}, req.Assets)
	assert.Equal(t, LangGDScript, req.Language)
	assert.Equal(t, "gd", req.Language.Extension())
	assert.Equal(t, "flux-pro-1.1", req.Models.Image)
	assert.Equal(t, "gpt-4o", req.Models.Chat, "empty model falls back to default")
	assert.Equal(t, DefaultImageSize, req.ImageSize)
	assert.Equal(t, 2, req.ThreeDCount())
	assert.False(t, req.IsEmpty())
}

func TestNewRequest_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   RequestInput
	}{
		{"unknown asset", RequestInput{Assets: map[string]int{"vehicle": 1}}},
		{"negative count", RequestInput{Assets: map[string]int{"object": -1}}},
		{"unknown script", RequestInput{Scripts: map[string]int{"shader": 1}}},
		{"negative script", RequestInput{Scripts: map[string]int{"enemy_ai": -2}}},
		{"unknown language", RequestInput{Language: "cobol"}},
		{"unknown extra", RequestInput{Extras: []string{"trailer"}}},
		{"unknown 3d", RequestInput{ThreeD: []string{"sound"}}},
		{"unknown procedural", RequestInput{Procedural: []string{"weather"}}},
		{"bad size", RequestInput{ImageSize: "huge"}},
		{"size with trailing junk", RequestInput{ImageSize: "1024x1024abc"}},
		{"size missing height", RequestInput{ImageSize: "1024x"}},
		{"asset count over cap", RequestInput{Assets: map[string]int{"object": DefaultMaxPerType + 1}}},
		{"script count over cap", RequestInput{Scripts: map[string]int{"enemy_ai": DefaultMaxPerType + 1}}},
		{"huge counts", RequestInput{Assets: map[string]int{"character": math.MaxInt, "environment": 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRequest(tt.in, defaultTestModels())
			require.Error(t, err)
			assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
		})
	}
}

func TestRequest_IsEmpty(t *testing.T) {
	assert.True(t, mustRequest(RequestInput{Concept: "only text"}).IsEmpty())
	assert.True(t, mustRequest(RequestInput{ThreeD: []string{"object"}}).IsEmpty())
	assert.False(t, mustRequest(RequestInput{Music: true}).IsEmpty())
	assert.False(t, mustRequest(RequestInput{Narrative: Narrative{Plot: true}}).IsEmpty())
}

func TestTotalItems(t *testing.T) {
	req := mustRequest(RequestInput{
		Assets:     map[string]int{"object": 3, "texture": 1},
		Scripts:    map[string]int{"game_manager": 2},
		Narrative:  Narrative{World: true, Plot: true},
		Extras:     []string{"storyline", "mechanics"},
		ThreeD:     []string{"object"},
		Procedural: []string{"loot"},
		Music:      true,
	})
	// concept + world + plot + 4 images + 2 scripts + 2 extras + 3 models + 1 procedural + music
	assert.Equal(t, 1+2+4+2+2+3+1+1, TotalItems(req))
	assert.Zero(t, TotalItems(mustRequest(RequestInput{})))
}

func TestNewRequestWithLimits(t *testing.T) {
	in := RequestInput{
		Assets:  map[string]int{"character": 3, "object": 3},
		Scripts: map[string]int{"game_manager": 2},
		ThreeD:  []string{"character"},
	}

	// concept + 6 images + 2 scripts + 3 models
	req, err := NewRequestWithLimits(in, defaultTestModels(), Limits{MaxPerType: 3, MaxItems: 12})
	require.NoError(t, err)
	assert.Equal(t, 12, TotalItems(req))

	_, err = NewRequestWithLimits(in, defaultTestModels(), Limits{MaxPerType: 3, MaxItems: 11})
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "limit is 11")

	_, err = NewRequestWithLimits(in, defaultTestModels(), Limits{MaxPerType: 2, MaxItems: 100})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `asset type "character" exceeds 2`)

	// 零值回落到默认上限
	_, err = NewRequestWithLimits(in, defaultTestModels(), Limits{})
	assert.NoError(t, err)
}

func TestLimitsFromConfig(t *testing.T) {
	cfg := config.DefaultPipelineConfig()
	assert.Equal(t, Limits{MaxPerType: 10, MaxItems: 100}, LimitsFromConfig(cfg))

	cfg.MaxItemsPerType, cfg.MaxItems = 0, 25
	assert.Equal(t, Limits{MaxPerType: DefaultMaxPerType, MaxItems: 25}, LimitsFromConfig(cfg))
}

func TestNewRequest_ImageSize(t *testing.T) {
	req, err := NewRequest(RequestInput{ImageSize: " 512x768 "}, defaultTestModels())
	require.NoError(t, err)
	assert.Equal(t, "512x768", req.ImageSize)
}
