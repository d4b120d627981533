package campaign

// MetaSource configures polling of one Meta ad account.
type MetaSource struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	AdAccountID string `json:"adAccountId" mapstructure:"ad_account_id"`
	AccessToken string `json:"accessToken" mapstructure:"access_token"`
}

// TripleWhaleSource configures polling of one Triple Whale store.
type TripleWhaleSource struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	APIKey  string `json:"apiKey" mapstructure:"api_key"`
	StoreID string `json:"storeId,omitempty" mapstructure:"store_id"`
}

// DataSources lists the providers an account pulls from.
type DataSources struct {
	Meta        *MetaSource        `json:"meta,omitempty" mapstructure:"meta"`
	TripleWhale *TripleWhaleSource `json:"tripleWhale,omitempty" mapstructure:"triple_whale"`
}

func (d DataSources) MetaEnabled() bool        { return d.Meta != nil && d.Meta.Enabled }
func (d DataSources) TripleWhaleEnabled() bool { return d.TripleWhale != nil && d.TripleWhale.Enabled }

// Account is a managed ad account.
type Account struct {
	ID          string       `json:"id" mapstructure:"id"`
	Name        string       `json:"name" mapstructure:"name"`
	Currency    string       `json:"currency" mapstructure:"currency"`
	IsActive    bool         `json:"isActive" mapstructure:"is_active"`
	DataSources *DataSources `json:"dataSources,omitempty" mapstructure:"data_sources"`

	// LegacyAdAccountID is set on accounts stored before multi-source support.
	LegacyAdAccountID string `json:"adAccountId,omitempty" mapstructure:"ad_account_id"`
}

// MigrateAccount upgrades a legacy Meta-only account to the DataSources shape.
// The access token is left empty and must be resolved from stored settings.
func MigrateAccount(a Account) Account {
	if a.DataSources != nil || a.LegacyAdAccountID == "" {
		return a
	}
	a.DataSources = &DataSources{
		Meta: &MetaSource{Enabled: true, AdAccountID: a.LegacyAdAccountID},
	}
	return a
}

const redacted = "***"

// Redacted returns a copy safe to expose over the API: credentials are masked.
func (a Account) Redacted() Account {
	if a.DataSources == nil {
		return a
	}
	ds := *a.DataSources
	if ds.Meta != nil && ds.Meta.AccessToken != "" {
		m := *ds.Meta
		m.AccessToken = redacted
		ds.Meta = &m
	}
	if ds.TripleWhale != nil && ds.TripleWhale.APIKey != "" {
		tw := *ds.TripleWhale
		tw.APIKey = redacted
		ds.TripleWhale = &tw
	}
	a.DataSources = &ds
	return a
}
