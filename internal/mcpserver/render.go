package mcpserver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starford/raido/internal/query"
)

// Markdown renderers for tool output. Keep these compact: the text goes
// straight into an LLM context window.

func renderResources(r query.ResourcesResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Resources (%d of %d)\n\n", r.FilteredCount, r.TotalCount)

	if len(r.Resources) == 0 {
		b.WriteString("No resources matched.\n")
	}
	for _, res := range r.Resources {
		fmt.Fprintf(&b, "## %s\n", res.ID)
		fmt.Fprintf(&b, "- name: %s\n", res.Name)
		fmt.Fprintf(&b, "- category: %s\n", res.Category)
		if len(res.Aliases) > 0 {
			fmt.Fprintf(&b, "- aliases: %s\n", strings.Join(res.Aliases, ", "))
		}
		if res.Description != "" {
			fmt.Fprintf(&b, "- description: %s\n", res.Description)
		}
		if res.CacheStatus != "" {
			fmt.Fprintf(&b, "- cache_status: %s\n", res.CacheStatus)
		}
		if res.LastRefreshedAt != "" {
			fmt.Fprintf(&b, "- last_refreshed_at: %s\n", res.LastRefreshedAt)
		}
		b.WriteString("\n")
	}

	if len(r.Suggestions) > 0 {
		fmt.Fprintf(&b, "Did you mean: %s?\n", strings.Join(r.Suggestions, ", "))
	}
	return b.String()
}

func renderModels(r query.ModelsResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Models (%d)\n\n", r.Count)

	if r.Count == 0 {
		b.WriteString("No models matched.\n")
		return b.String()
	}

	// Grouped view first: resource then schema, alphabetical.
	resources := make([]string, 0, len(r.Grouped))
	for id := range r.Grouped {
		resources = append(resources, id)
	}
	sort.Strings(resources)
	for _, id := range resources {
		fmt.Fprintf(&b, "## %s\n", id)
		schemas := make([]string, 0, len(r.Grouped[id]))
		for s := range r.Grouped[id] {
			schemas = append(schemas, s)
		}
		sort.Strings(schemas)
		for _, schema := range schemas {
			fmt.Fprintf(&b, "### %s\n", schema)
			for _, name := range r.Grouped[id][schema] {
				fmt.Fprintf(&b, "- %s\n", name)
			}
		}
		b.WriteString("\n")
	}

	if detailed(r.Models) {
		b.WriteString("## Details\n")
		for _, m := range r.Models {
			fmt.Fprintf(&b, "- %s (%s)", m.RelationName, m.UniqueID)
			if m.Materialized != "" {
				fmt.Fprintf(&b, " materialized=%s", m.Materialized)
			}
			if len(m.Tags) > 0 {
				fmt.Fprintf(&b, " tags=%s", strings.Join(m.Tags, ","))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if r.Truncated {
		b.WriteString("Results truncated; raise limit or narrow the filter.\n")
	}
	if len(r.FailedResources) > 0 {
		fmt.Fprintf(&b, "Resources unavailable (no cached artifacts): %s\n", strings.Join(r.FailedResources, ", "))
	}
	return b.String()
}

func detailed(models []query.ModelSummary) bool {
	return len(models) > 0 && models[0].UniqueID != ""
}

func renderModelDetails(m *query.ModelDetails) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", m.RelationName)
	fmt.Fprintf(&b, "- unique_id: %s\n", m.UniqueID)
	fmt.Fprintf(&b, "- resource: %s\n", m.ResourceID)
	fmt.Fprintf(&b, "- database.schema: %s.%s\n", m.Database, m.Schema)
	if m.Materialized != "" {
		fmt.Fprintf(&b, "- materialized: %s\n", m.Materialized)
	}
	if len(m.Tags) > 0 {
		fmt.Fprintf(&b, "- tags: %s\n", strings.Join(m.Tags, ", "))
	}
	if m.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", m.Description)
	}

	if len(m.Columns) > 0 {
		b.WriteString("\n## Columns\n")
		names := make([]string, 0, len(m.Columns))
		for name := range m.Columns {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			col := m.Columns[name]
			fmt.Fprintf(&b, "- %s", name)
			if col.Type != "" {
				fmt.Fprintf(&b, " (%s)", col.Type)
			} else if col.DataType != "" {
				fmt.Fprintf(&b, " (%s)", col.DataType)
			}
			if col.Description != "" {
				fmt.Fprintf(&b, ": %s", col.Description)
			} else if col.Comment != "" {
				fmt.Fprintf(&b, ": %s", col.Comment)
			}
			b.WriteString("\n")
		}
	}

	if len(m.Parents) > 0 || len(m.Children) > 0 {
		b.WriteString("\n## Lineage\n")
		if len(m.Parents) > 0 {
			fmt.Fprintf(&b, "- parents: %s\n", strings.Join(m.Parents, ", "))
		}
		if len(m.Children) > 0 {
			fmt.Fprintf(&b, "- children: %s\n", strings.Join(m.Children, ", "))
		}
	}

	if len(m.Stats) > 0 {
		b.WriteString("\n## Stats\n")
		keys := make([]string, 0, len(m.Stats))
		for k := range m.Stats {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %v\n", m.Stats[k].Label, m.Stats[k].Value)
		}
	}

	if m.RawCode != "" {
		fmt.Fprintf(&b, "\n## SQL\n```sql\n%s\n```\n", m.RawCode)
	}
	return b.String()
}

func renderDescriptions(r query.DescriptionsResult) string {
	var b strings.Builder
	for _, doc := range r.Docs {
		fmt.Fprintf(&b, "# %s (%s)\n\n%s\n\n", doc.Name, doc.ResourceID, doc.Content)
	}
	if len(r.Missing) > 0 {
		fmt.Fprintf(&b, "Not found in: %s\n", strings.Join(r.Missing, ", "))
	}
	return b.String()
}

func renderRefresh(r query.RefreshResult) string {
	var b strings.Builder
	if r.Success {
		b.WriteString("Refresh completed: ")
	} else {
		b.WriteString("Refresh finished with failures: ")
	}
	b.WriteString(r.Message)
	b.WriteString("\n")

	ids := make([]string, 0, len(r.Outcomes))
	for id := range r.Outcomes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		o := r.Outcomes[id]
		fmt.Fprintf(&b, "- %s: %s", id, o.Action)
		if o.Error != "" {
			fmt.Fprintf(&b, " (%s)", o.Error)
		}
		b.WriteString("\n")
	}

	if s := r.DiscoverySummary; s != nil {
		fmt.Fprintf(&b, "\nDiscovery: %d repositories scanned, %d with artifacts.\n", s.TotalDiscovered, s.WithArtifacts)
		if s.RateLimited {
			b.WriteString("Discovery was rate limited; registry may be stale.\n")
		}
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "- probe failed for %s: %s\n", e.Repo, e.Reason)
		}
	}
	return b.String()
}
