package ads

import (
	"context"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct {
	batches [][]Row
	queries []string
}

func (s *stubSearcher) SearchStream(_ context.Context, _ string, query string, fn func([]Row) error) error {
	s.queries = append(s.queries, query)
	for _, b := range s.batches {
		if err := fn(b); err != nil {
			return err
		}
	}
	return nil
}

func TestListCampaigns(t *testing.T) {
	s := &stubSearcher{batches: [][]Row{
		{{"campaign": map[string]interface{}{"id": "10", "name": "Brand", "status": "ENABLED"}}},
		{{"campaign": map[string]interface{}{"id": gojson.Number("11"), "name": "Generic"}}},
	}}

	got, err := ListCampaigns(context.Background(), s, "111")
	require.NoError(t, err)
	assert.Equal(t, []Campaign{
		{ID: "10", Name: "Brand", Status: "ENABLED"},
		{ID: "11", Name: "Generic"},
	}, got)
	assert.Contains(t, s.queries[0], "FROM campaign")
}

func TestDescribeCustomer(t *testing.T) {
	s := &stubSearcher{batches: [][]Row{{{
		"customer": map[string]interface{}{
			"id":              "1234567890",
			"descriptiveName": "Shop",
			"currencyCode":    "EUR",
			"timeZone":        "Europe/Madrid",
			"manager":         true,
		},
	}}}}

	c, err := DescribeCustomer(context.Background(), s, "123-456-7890")
	require.NoError(t, err)
	assert.Equal(t, Customer{
		ID:              "1234567890",
		DescriptiveName: "Shop",
		CurrencyCode:    "EUR",
		TimeZone:        "Europe/Madrid",
		Manager:         true,
	}, c)
}
