package ads

import (
	"context"
	"fmt"

	gojson "github.com/goccy/go-json"
)

// Campaign is a campaign id and name
type Campaign struct {
	ID     string
	Name   string
	Status string
}

// Customer is the descriptive information of one account
type Customer struct {
	ID              string
	DescriptiveName string
	CurrencyCode    string
	TimeZone        string
	Manager         bool
	TestAccount     bool
}

const (
	campaignsQuery = "SELECT campaign.id, campaign.name, campaign.status FROM campaign ORDER BY campaign.id"
	customerQuery  = "SELECT customer.id, customer.descriptive_name, customer.currency_code, " +
		"customer.time_zone, customer.manager, customer.test_account FROM customer LIMIT 1"
)

// ListCampaigns returns every campaign of the account
func ListCampaigns(ctx context.Context, s Searcher, customerID string) ([]Campaign, error) {
	var out []Campaign
	err := s.SearchStream(ctx, customerID, campaignsQuery, func(rows []Row) error {
		for _, row := range rows {
			c := object(row, "campaign")
			out = append(out, Campaign{
				ID:     text(c["id"]),
				Name:   text(c["name"]),
				Status: text(c["status"]),
			})
		}
		return nil
	})
	return out, err
}

// DescribeCustomer returns the account's descriptive information
func DescribeCustomer(ctx context.Context, s Searcher, customerID string) (Customer, error) {
	cust := Customer{ID: NormalizeCustomerID(customerID)}
	err := s.SearchStream(ctx, customerID, customerQuery, func(rows []Row) error {
		for _, row := range rows {
			c := object(row, "customer")
			cust.ID = text(c["id"])
			cust.DescriptiveName = text(c["descriptiveName"])
			cust.CurrencyCode = text(c["currencyCode"])
			cust.TimeZone = text(c["timeZone"])
			cust.Manager, _ = c["manager"].(bool)
			cust.TestAccount, _ = c["testAccount"].(bool)
		}
		return nil
	})
	return cust, err
}

func object(row Row, key string) map[string]interface{} {
	m, _ := row[key].(map[string]interface{})
	return m
}

func text(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case gojson.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
