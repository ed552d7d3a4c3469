package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSearchConfig_IsValidAndEnablesAllSources(t *testing.T) {
	cfg := DefaultSearchConfig()
	require.NoError(t, cfg.Validate())
	assert.ElementsMatch(t, []string{"pubmed", "europe_pmc", "semantic_scholar", "openalex", "scholar"}, cfg.EnabledSources())
}

func TestSearchConfig_EnabledSources_Order(t *testing.T) {
	cfg := SearchConfig{EnableScholar: true, EnablePubMed: true, EnableOpenAlex: true}
	assert.Equal(t, []string{"pubmed", "openalex", "scholar"}, cfg.EnabledSources(), "EnabledSources must return a fixed deterministic order regardless of struct field order")
}

func TestSearchConfig_Validate_NoSourcesEnabled(t *testing.T) {
	var cfg SearchConfig
	err := cfg.Validate()
	require.Error(t, err)
	var de *Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrKindInvalidInput, de.Kind)
}

func TestSearchConfig_Validate_YearRange(t *testing.T) {
	cfg := DefaultSearchConfig()
	cfg.QueryYearFrom = 2020
	cfg.QueryYearTo = 2010
	require.Error(t, cfg.Validate())

	cfg.QueryYearTo = 2025
	require.NoError(t, cfg.Validate())

	cfg.QueryYearFrom, cfg.QueryYearTo = 0, 0
	require.NoError(t, cfg.Validate(), "unset bounds impose no constraint")
}
