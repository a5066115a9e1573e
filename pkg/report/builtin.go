package report

// field builds a Field for the static definitions below; an empty path
// marks the column as unavailable.
func field(path, column string) Field {
	if path == "" {
		return Field{Column: column}
	}
	return Field{Path: MustParseFieldPath(path), Column: column}
}

// KeywordsPerformance replaces the legacy KEYWORDS_PERFORMANCE_REPORT.
func KeywordsPerformance() Definition {
	return Definition{
		Name:     "keywords_performance",
		Resource: "keyword_view",
		Table:    "ITZ_MKT_KEY",
		OrderBy:  "metrics.clicks DESC",
		Fields: []Field{
			field("customer.id", "CUSTOMER_ID"),
			field("customer.descriptive_name", "CUENTA"),
			field("segments.date", "DIA"),
			// segments.device cannot be selected together with metrics.average_page_views
			field("segments.device", "DEVICE"),
			field("campaign.name", "CAMPAIGN"),
			field("ad_group_criterion.keyword.text", "KEYWORD"),
			field("ad_group.name", "AD_GROUP"),
			field("ad_group_criterion.status", "KEYWORD_STATE"),
			field("ad_group_criterion.keyword.match_type", "MATCH_TYPE"),
			field("ad_group_criterion.effective_cpc_bid_micros", "MAX_CPC"),
			field("metrics.clicks", "CLICKS"),
			field("metrics.impressions", "IMPRESSIONS"),
			field("metrics.average_cpc", "AVG_CPC"),
			field("metrics.ctr", "CTR"),
			field("metrics.cost_micros", "COST"),
			field("", "AVG_POSITION"),
			field("ad_group_criterion.quality_info.quality_score", "QUALITY_SCORE"),
			// labels need a separate query against ad_group_label
			field("", "LABELS"),
			field("metrics.search_impression_share", "SEARCH_IMPR_SHARE"),
			field("metrics.search_rank_lost_impression_share", "SEARCH_LOST_IS_RANK"),
			field("metrics.search_exact_match_impression_share", "SEARCH_EXACT_MATCH_IS"),
			field("metrics.conversions", "CONVERSIONS"),
			field("metrics.all_conversions", "ALL_CONV"),
			field("metrics.cross_device_conversions", "CROSS_DEVICE_CONV"),
			field("metrics.conversions_value", "TOTAL_CONV_VALUE"),
			field("metrics.all_conversions_value", "ALL_CONV_VALUE"),
			field("metrics.video_quartile_p100_rate", "VIDEO_PLAYED_TO_100"),
			field("metrics.video_quartile_p75_rate", "VIDEO_PLAYED_TO_75"),
			field("metrics.video_quartile_p50_rate", "VIDEO_PLAYED_TO_50"),
			field("", "VIDEO_VIEWS"),
		},
	}
}

// AdPerformance replaces the legacy AD_PERFORMANCE_REPORT.
func AdPerformance() Definition {
	return Definition{
		Name:     "ad_performance",
		Resource: "ad_group_ad",
		Table:    "ITZ_MKT_ADS",
		OrderBy:  "metrics.clicks DESC",
		Fields: []Field{
			field("customer.id", "CUSTOMER_ID"),
			field("customer.descriptive_name", "ACCOUNT"),
			field("segments.date", "DAY"),
			field("segments.device", "DEVICE"),
			field("campaign.name", "CAMPAIGN"),
			field("ad_group.name", "AD_GROUP"),
			field("ad_group_ad.ad.id", "AD_ID"),
			field("ad_group_ad.ad.type", "AD_TYPE"),
			field("ad_group_ad.ad.text_ad.headline", "AD"),
			field("ad_group_ad.ad.image_ad.name", "IMAGE_AD_NAME"),
			field("metrics.clicks", "CLICKS"),
			field("metrics.impressions", "IMPRESSIONS"),
			field("metrics.ctr", "CTR"),
			field("metrics.average_cpc", "AVG_CPC"),
			field("metrics.average_cpm", "AVG_CPM"),
			field("metrics.cost_micros", "COST"),
			field("", "AVG_POSITION"),
			field("ad_group_ad.ad.final_urls", "FINAL_URL"),
			field("", "DESTINATION_URL"),
			field("", "MOBILE_FINAL_URL"),
			field("ad_group_ad.status", "AD_STATE"),
			field("metrics.conversions", "CONVERSIONS"),
			field("metrics.all_conversions_value", "ALL_CONV_VALUE"),
			field("metrics.cross_device_conversions", "CROSS_DEVICE_CONV"),
			field("metrics.all_conversions", "ALL_CONVERSION_"),
			field("metrics.conversions_value", "TOTAL_CONVERSION_VALUE"),
			field("metrics.video_quartile_p100_rate", "VIDEO_PLAYED_TO_100"),
			field("metrics.video_quartile_p75_rate", "VIDEO_PLAYED_TO_75"),
			field("metrics.video_quartile_p50_rate", "VIDEO_PLAYED_TO_50"),
			field("", "VIDEO_VIEWS"),
		},
	}
}

// Builtin returns the definitions harvested when no definitions file is given
func Builtin() []Definition {
	return []Definition{KeywordsPerformance(), AdPerformance()}
}
