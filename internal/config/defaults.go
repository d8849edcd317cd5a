package config

// Default returns the pipeline the analysis was built around: World Bank PIP
// poverty indicators joined with expected years of schooling, public
// education spending and average country coordinates, restricted to
// 2000-2019, with missing education metrics filled by the per-country mean.
func Default() Pipeline {
	start, end := 2000, 2019
	p := Pipeline{
		Job: "poverty_education",
		Inputs: map[string]Input{
			"df1": {Path: "data/pip.csv"},
			"df3": {Path: "data/expected-years-of-schooling-vs-share-in-extreme-poverty.csv"},
			"df5": {Path: "data/total-government-expenditure-on-education-gdp.csv"},
			"df6": {Path: "data/country-coord.csv"},
		},
		Normalize: Normalize{
			Renames: map[string]map[string]string{
				"df3": {"expected_years_of_schooling": "expected_years_school"},
				"df5": {"historical_and_more_recent_expenditure_estimates": "spend_public_education"},
				"df6": {
					"alpha-3_code":        "country_code",
					"latitude_(average)":  "latitude",
					"longitude_(average)": "longitude",
				},
			},
		},
		Merge: Merge{
			Primary: "df1",
			Keys: map[string]Key{
				"df1": {Parts: []string{"country_code", "reporting_year"}},
				"df3": {Parts: []string{"code", "year"}},
				"df5": {Parts: []string{"code", "year"}},
			},
			Project: map[string][]string{
				"df1": {
					"region_name", "region_code", "country_name", "country_code", "reporting_year",
					"gini", "poverty_line", "headcount", "poverty_gap", "reporting_pop", "reporting_gdp",
					DefaultKeyColumn,
				},
				"df3": {DefaultKeyColumn, "expected_years_school"},
				"df5": {DefaultKeyColumn, "spend_public_education"},
				"df6": {"country_code", "latitude", "longitude"},
			},
			Joins: []Join{
				{Table: "df3", On: DefaultKeyColumn},
				{Table: "df5", On: DefaultKeyColumn},
				{Table: "df6", On: "country_code"},
			},
		},
		Range: Range{Column: "reporting_year", Start: &start, End: &end},
		Clean: Clean{
			Order: OrderImputeFirst,
			Impute: Impute{
				Columns: []string{"expected_years_school", "spend_public_education"},
				GroupBy: "country_name",
				Method:  MethodMean,
			},
			Required: []string{"expected_years_school", "spend_public_education"},
		},
	}
	p.ApplyDefaults()
	return p
}
