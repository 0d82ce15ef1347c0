package domain

// Object is a stored record of an object type (contacts, deals, employees...).
// Property values are kept as strings; the engine coerces numeric strings.
type Object struct {
	ID         string            `json:"id"`
	ObjectType string            `json:"objectType"`
	Properties map[string]string `json:"properties"`
	CreatedAt  string            `json:"createdAt"`
	UpdatedAt  string            `json:"updatedAt"`
	Archived   bool              `json:"archived"`
	ArchivedAt string            `json:"archivedAt,omitempty"`
}

// Record flattens the object into the record shape pipelines operate on:
// its properties plus id, createdAt and updatedAt.
func (o *Object) Record() Record {
	rec := make(Record, len(o.Properties)+3)
	for k, v := range o.Properties {
		rec[k] = v
	}
	rec["id"] = o.ID
	rec["createdAt"] = o.CreatedAt
	rec["updatedAt"] = o.UpdatedAt
	return rec
}

// CreateInput holds the data needed to create a new object.
type CreateInput struct {
	Properties map[string]string `json:"properties"`
}

// ListOpts holds the parameters for listing objects.
type ListOpts struct {
	Limit    int
	After    string
	Archived bool
}

// ObjectPage is a paginated list of objects.
type ObjectPage struct {
	Results []*Object
	After   string
	HasMore bool
}
