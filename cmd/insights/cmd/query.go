package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/weni-ai/insights/internal/common/logging"
	"github.com/weni-ai/insights/internal/insights/resources"
	"github.com/weni-ai/insights/internal/insights/service"
	"github.com/weni-ai/insights/internal/querygen"
)

func queryCmd() *cobra.Command {
	var (
		project   string
		filters   string
		queryType string
		options   querygen.AggregateOptions
	)
	cmd := &cobra.Command{
		Use:   "query <resource>",
		Short: "Prints the query a filter mapping generates for a resource, without running it",
		Example: `insights query rooms --project 0c4e1f9a-3b7d-4e2a-8f6c-1d2e3f4a5b6c \
  --filters '{"created_on__gte": "2024-01-01", "tag": ["t1", "t2"]}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.ConfigureCommandLineLogging()
			projectUUID, err := uuid.Parse(project)
			if err != nil {
				return errors.Wrapf(err, "invalid project %q", project)
			}
			parsed, err := querygen.ParseFiltersJSON([]byte(filters))
			if err != nil {
				return err
			}
			plan, err := service.NewQueryService(resources.DefaultRegistry(), nil, nil).Plan(projectUUID, service.QueryRequest{
				Resource:  args[0],
				Filters:   parsed,
				QueryType: queryType,
				Options:   options,
			})
			if err != nil {
				return err
			}
			return printPlan(cmd.OutOrStdout(), plan)
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Project uuid the query is scoped to")
	cmd.Flags().StringVar(&filters, "filters", "{}", "Filters as a JSON object, e.g. {\"created_on__gte\": \"2024-01-01\"}")
	cmd.Flags().StringVar(&queryType, "query-type", querygen.DefaultAggregation, "Aggregation to generate")
	cmd.Flags().StringVar(&options.OpField, "op-field", "", "Column or attribute the aggregation is computed over")
	cmd.Flags().StringVar(&options.Field, "field", "", "Named attribute the aggregation is restricted to")
	cmd.Flags().StringSliceVar(&options.Fields, "fields", nil, "Columns returned by list")
	cmd.Flags().StringSliceVar(&options.OrderBy, "order-by", nil, "Sort keys for list, prefix with - to sort descending")
	cmd.Flags().UintVar(&options.Limit, "limit", 0, "Maximum rows returned by list")
	cmd.Flags().UintVar(&options.Offset, "offset", 0, "Rows skipped by list")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func printPlan(out io.Writer, plan *service.Plan) error {
	switch {
	case plan.Sql != nil:
		args, err := json.Marshal(plan.Sql.Args)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = fmt.Fprintf(out, "%s\n-- args: %s\n-- interpolated:\n%s\n", plan.Sql.Sql, args, plan.Sql.Interpolated)
		return errors.WithStack(err)
	case plan.Search != nil:
		body, err := json.MarshalIndent(plan.Search.Body, "", "  ")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = fmt.Fprintf(out, "POST %s\n%s\n", plan.Search.Endpoint, body)
		return errors.WithStack(err)
	default:
		return errors.New("empty query plan")
	}
}

func resourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "Lists the resources that can be queried",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := resources.DefaultRegistry()
			for _, name := range registry.Names() {
				resource, err := registry.Get(name)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", name, resource.Backend, strings.Join(resource.Fields.Keys(), ",")); err != nil {
					return errors.WithStack(err)
				}
			}
			return nil
		},
	}
}
