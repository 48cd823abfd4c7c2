package task

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	crop, err := Lookup(CropRecommendation)
	require.NoError(t, err)
	assert.Equal(t, "/predict/crop", crop.Endpoint)
	assert.Equal(t, EncodingJSON, crop.Encoding)
	assert.Len(t, crop.Fields, 7)

	fert := MustLookup(FertilizerRecommendation)
	assert.Equal(t, "fertilizer", fert.ResultKey)
	soil, ok := fert.Field("soil_type")
	require.True(t, ok)
	assert.Equal(t, FieldCategorical, soil.Type)
	assert.True(t, soil.HasOption("Loamy"))
	assert.False(t, soil.HasOption("loamy"))

	dis := MustLookup(DiseaseDetection)
	assert.Equal(t, EncodingMultipart, dis.Encoding)
	assert.Equal(t, FileFieldName, dis.Fields[0].Name)

	_, err = Lookup("weather")
	assert.True(t, errors.Is(err, ErrUnknownTask))
}

func TestParse(t *testing.T) {
	for in, want := range map[string]Kind{
		"crop":        CropRecommendation,
		"/fertilizer": FertilizerRecommendation,
		" Disease ":   DiseaseDetection,
	} {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := Parse("soil")
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestMatchOption(t *testing.T) {
	crop := MustLookup(FertilizerRecommendation)
	f, _ := crop.Field("crop_type")
	v, ok := f.MatchOption(" sugarcane")
	assert.True(t, ok)
	assert.Equal(t, "Sugarcane", v)
	_, ok = f.MatchOption("Barley")
	assert.False(t, ok)
}

func TestByResultKey(t *testing.T) {
	k, ok := ByResultKey("disease")
	assert.True(t, ok)
	assert.Equal(t, DiseaseDetection, k)
	_, ok = ByResultKey("yield")
	assert.False(t, ok)
}
