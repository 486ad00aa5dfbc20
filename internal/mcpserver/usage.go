package mcpserver

// UsageGuide describes the intended tool workflow for LLM consumers. It is
// exposed both as the discovery_workflow prompt and the raido://usage
// resource.
const UsageGuide = `# Raido Discovery Workflow

Raido answers metadata questions about dbt projects. Follow this order:

## 1. Find the resource

Call ` + "`get_resources`" + ` first. Each entry is one dbt project; use its ` + "`id`" + `
(or any listed alias, e.g. ` + "`eth`" + ` for ` + "`ethereum-models`" + `) as ` + "`resource_id`" + `
in every other tool.

## 2. Browse models

Call ` + "`get_models`" + ` to list models:

- No filters returns **gold** (curated) models only.
- ` + "`schema`" + ` is an exact schema name and takes precedence over ` + "`level`" + `.
- ` + "`level`" + ` is one of ` + "`bronze`" + `, ` + "`silver`" + `, ` + "`gold`" + `.
- ` + "`resource_id`" + ` takes a single string or an array of up to 5 strings.
  Never pass ` + "`null`" + `, a boolean, or an empty string.
- Results are capped (default 25, max 200); a ` + "`truncated`" + ` note means there
  is more — raise ` + "`limit`" + ` or narrow the filter.

## 3. Inspect one model

Call ` + "`get_model_details`" + ` with the most specific identifier you have:

1. ` + "`unique_id`" + ` (` + "`model.<project>.<name>`" + `) — exact, fastest.
2. ` + "`fqn`" + ` (` + "`database.schema.table`" + `) — exact.
3. ` + "`model_name`" + ` / ` + "`table_name`" + ` — searched across resources; an
   ambiguous hit returns the candidate list, retry with one of its unique ids.

Set ` + "`show_details`" + ` for lineage, SQL, and warehouse stats.

## 4. Project documentation

Call ` + "`get_description`" + ` with ` + "`doc_name`" + ` (try ` + "`__overview__`" + ` or
` + "`overview`" + `) and the ` + "`resource_id`" + ` list. A name defined by several
packages returns every block.

## 5. Refreshing

` + "`refresh_cache`" + ` re-discovers projects and refetches artifacts. Cached data
is refreshed automatically when stale; call this only when you know the
upstream changed. ` + "`force`" + ` bypasses freshness checks and spends API quota.
`
