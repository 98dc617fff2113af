package resources

import "github.com/weni-ai/insights/internal/querygen"

// FlowRuns are flow run documents. Results collected during a run live in the nested values list.
func FlowRuns() Resource {
	return Resource{
		Name:    "flowruns",
		Backend: BackendSearch,
		Index: querygen.SearchIndex{
			Name:        "flowruns",
			ValuesPath:  "values",
			NameField:   "name",
			NumberField: "value_number",
			RawField:    "value",
		},
		NestedPaths: []string{"values"},
		Fields: querygen.MapFilterSet{
			ProjectFilter: {SourceField: "project_uuid"},
			"flow":        {SourceField: "flow_uuid"},
			"created_on":  {SourceField: "created_on"},
			"modified_on": {SourceField: "modified_on"},
			"exited_on":   {SourceField: "exited_on"},
			"ended_at":    {SourceField: "exited_on"},
			"exit_type":   {SourceField: "exit_type"},
			"contact":     {SourceField: "contact_uuid"},
			"value_name":  {SourceField: "values.name"},
			"value":       {SourceField: "values.value"},
		},
	}
}
