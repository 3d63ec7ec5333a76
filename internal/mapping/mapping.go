package mapping

import (
	"fmt"
	"strings"
)

// Column pairs one export header with its sink column.
type Column struct {
	Source string
	Sink   string
}

// columns is the closed header-to-column table. Headers not listed here are dropped.
var columns = []Column{
	{"Attributed Touch Type", "attributed_touch_type"},
	{"Attributed Touch Time", "attributed_touch_time"},
	{"Install Time", "install_time"},
	{"Event Time", "event_time"},
	{"Event Name", "event_name"},
	{"Partner", "partner"},
	{"Media Source", "media_source"},
	{"Campaign", "campaign"},
	{"Adset", "adset"},
	{"Ad", "ad"},
	{"Ad Type", "ad_type"},
	{"Contributor 1 Touch Type", "contributor_1_touch_type"},
	{"Contributor 1 Touch Time", "contributor_1_touch_time"},
	{"Contributor 1 Partner", "contributor_1_partner"},
	{"Contributor 1 Match Type", "contributor_1_match_type"},
	{"Contributor 1 Media Source", "contributor_1_media_source"},
	{"Contributor 1 Campaign", "contributor_1_campaign"},
	{"Contributor 1 Engagement Type", "contributor_1_engagement_type"},
	{"Contributor 2 Touch Type", "contributor_2_touch_type"},
	{"Contributor 2 Touch Time", "contributor_2_touch_time"},
	{"Contributor 2 Partner", "contributor_2_partner"},
	{"Contributor 2 Media Source", "contributor_2_media_source"},
	{"Contributor 2 Campaign", "contributor_2_campaign"},
	{"Contributor 2 Match Type", "contributor_2_match_type"},
	{"Contributor 2 Engagement Type", "contributor_2_engagement_type"},
	{"Contributor 3 Touch Type", "contributor_3_touch_type"},
	{"Contributor 3 Touch Time", "contributor_3_touch_time"},
	{"Contributor 3 Partner", "contributor_3_partner"},
	{"Contributor 3 Media Source", "contributor_3_media_source"},
	{"Contributor 3 Campaign", "contributor_3_campaign"},
	{"Contributor 3 Match Type", "contributor_3_match_type"},
	{"Contributor 3 Engagement Type", "contributor_3_engagement_type"},
	{"City", "city"},
	{"IP", "ip"},
	{"AppsFlyer ID", "appsflyer_id"},
	{"Customer User ID", "customer_user_id"},
	{"IDFA", "idfa"},
	{"IDFV", "idfv"},
	{"Device Category", "device_category"},
	{"Platform", "platform"},
	{"OS Version", "os_version"},
	{"Bundle ID", "bundle_id"},
	{"Is Retargeting", "is_retargeting"},
	{"Attribution Lookback", "attribution_lookback"},
	{"Match Type", "match_type"},
	{"Device Download Time", "device_download_time"},
	{"Device Model", "device_model"},
	{"Engagement Type", "engagement_type"},
}

// datetimeColumns need canonicalization before they reach the sink.
var datetimeColumns = []string{
	"attributed_touch_time",
	"install_time",
	"event_time",
	"contributor_1_touch_time",
	"contributor_2_touch_time",
	"contributor_3_touch_time",
	"device_download_time",
}

// additionalFields are requested on top of the default export schema.
var additionalFields = []string{
	"blocked_reason_rule", "store_reinstall", "impressions", "contributor3_match_type", "custom_dimension",
	"conversion_type", "gp_click_time", "match_type", "mediation_network", "oaid", "deeplink_url",
	"blocked_reason", "blocked_sub_reason", "gp_broadcast_referrer", "gp_install_begin", "campaign_type",
	"custom_data", "rejected_reason", "device_download_time", "keyword_match_type", "contributor1_match_type",
	"contributor2_match_type", "device_model", "monetization_network", "segment", "is_lat", "gp_referrer",
	"blocked_reason_value", "store_product_page", "device_category", "app_type", "rejected_reason_value",
	"ad_unit", "keyword_id", "placement", "network_account_id", "install_app_store", "amazon_aid", "att",
	"engagement_type", "gdpr_applies", "ad_user_data_enabled", "ad_personalization_enabled",
}

const (
	// KeyColumn holds the natural key used for dedup.
	KeyColumn = "appsflyer_id"
	// TimeColumn bounds the dedup query.
	TimeColumn = "install_time"
)

type index struct {
	sourceToSink map[string]string
	sinkToSource map[string]string
	datetime     map[string]bool
}

var idx = mustBuild(columns, datetimeColumns)

func mustBuild(table []Column, datetimes []string) *index {
	ix, err := build(table, datetimes)
	if err != nil {
		panic(err)
	}
	return ix
}

func build(table []Column, datetimes []string) (*index, error) {
	ix := &index{
		sourceToSink: make(map[string]string, len(table)),
		sinkToSource: make(map[string]string, len(table)),
		datetime:     make(map[string]bool, len(datetimes)),
	}
	for _, c := range table {
		if _, dup := ix.sourceToSink[c.Source]; dup {
			return nil, fmt.Errorf("duplicate source header %q", c.Source)
		}
		if prev, dup := ix.sinkToSource[c.Sink]; dup {
			return nil, fmt.Errorf("sink column %q mapped from both %q and %q", c.Sink, prev, c.Source)
		}
		ix.sourceToSink[c.Source] = c.Sink
		ix.sinkToSource[c.Sink] = c.Source
	}
	for _, col := range datetimes {
		if _, ok := ix.sinkToSource[col]; !ok {
			return nil, fmt.Errorf("datetime column %q is not a mapped sink column", col)
		}
		ix.datetime[col] = true
	}
	for _, col := range []string{KeyColumn, TimeColumn} {
		if _, ok := ix.sinkToSource[col]; !ok {
			return nil, fmt.Errorf("required column %q is not mapped", col)
		}
	}
	return ix, nil
}

// SinkColumn translates an export header. ok is false for headers outside the table.
func SinkColumn(source string) (string, bool) {
	sink, ok := idx.sourceToSink[source]
	return sink, ok
}

// SourceHeader translates a sink column back to its export header.
func SourceHeader(sink string) (string, bool) {
	source, ok := idx.sinkToSource[sink]
	return source, ok
}

// IsDatetime reports whether a sink column holds a datetime.
func IsDatetime(sink string) bool {
	return idx.datetime[sink]
}

// AdditionalFieldsParam is the comma-separated additional_fields query value.
func AdditionalFieldsParam() string {
	return strings.Join(additionalFields, ",")
}
