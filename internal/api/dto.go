package api

// RefreshRequest is the POST /cache/refresh body. ResourceIDs accepts a
// single string or a list of strings; absent means every known resource.
type RefreshRequest struct {
	ResourceIDs any  `json:"resource_ids,omitempty"`
	Force       bool `json:"force,omitempty"`
}
