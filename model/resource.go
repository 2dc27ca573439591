package model

import "time"

// Category is a free-form grouping key for tracked resources (e.g. "user",
// "datasource"). Each category maps to one delete endpoint.
type Category string

const (
	CategoryUser        Category = "user"
	CategoryDatasource  Category = "datasource"
	CategoryDataset     Category = "dataset"
	CategoryWorkflow    Category = "workflow"
	CategoryModel       Category = "model"
	CategoryQualityRule Category = "quality_rule"
)

// TrackedResource represents a piece of state created by a test run that
// should be deleted again once the run is over.
type TrackedResource struct {
	// Identifier of the resource, either generated or the backend assigned one
	ID string `json:"id"`
	// Category the resource was tracked under
	Category Category `json:"category"`
	// Opaque description of the resource
	Payload any `json:"payload,omitempty"`
	// Time the resource was tracked
	CreatedAt time.Time `json:"createdAt"`
	// Whether a cleanup attempt succeeded for this resource
	Cleaned bool `json:"cleaned"`
}

// ResourceBase holds the fields shared by every persisted resource record.
type ResourceBase struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	Cleaned   bool      `json:"cleaned,omitempty"`
}

// Base returns the shared record fields.
func (b *ResourceBase) Base() *ResourceBase { return b }

// Resource is implemented by every category specific record type.
type Resource interface {
	Base() *ResourceBase
	Category() Category
}

// UserRecord is a platform user created by a test.
type UserRecord struct {
	ResourceBase
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
}

func (*UserRecord) Category() Category { return CategoryUser }

// DatasourceRecord is a datasource connection created by a test.
type DatasourceRecord struct {
	ResourceBase
	Type     string `json:"type"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Database string `json:"database,omitempty"`
}

func (*DatasourceRecord) Category() Category { return CategoryDatasource }

// DatasetRecord is a dataset registered by a test.
type DatasetRecord struct {
	ResourceBase
	DatasourceID string `json:"datasourceId,omitempty"`
	Table        string `json:"table,omitempty"`
	Format       string `json:"format,omitempty"`
}

func (*DatasetRecord) Category() Category { return CategoryDataset }

// WorkflowRecord is a workflow definition created by a test.
type WorkflowRecord struct {
	ResourceBase
	Schedule string `json:"schedule,omitempty"`
	Steps    int    `json:"steps,omitempty"`
}

func (*WorkflowRecord) Category() Category { return CategoryWorkflow }

// ModelRecord is an ML model registered by a test.
type ModelRecord struct {
	ResourceBase
	Framework string `json:"framework,omitempty"`
	Version   string `json:"version,omitempty"`
}

func (*ModelRecord) Category() Category { return CategoryModel }

// QualityRuleRecord is a data quality rule created by a test.
type QualityRuleRecord struct {
	ResourceBase
	DatasetID  string `json:"datasetId,omitempty"`
	RuleType   string `json:"ruleType,omitempty"`
	Expression string `json:"expression,omitempty"`
}

func (*QualityRuleRecord) Category() Category { return CategoryQualityRule }
