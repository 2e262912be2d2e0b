package handbook

import "sort"

// DefaultLanguage is the answer language used when a descriptor sets none.
const DefaultLanguage = "日本語"

// Department is a department or course within a faculty.
type Department struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Descriptor describes one handbook document, keyed by its document
// identifier (a faculty key such as "engineering").
type Descriptor struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Source      string       `json:"-"`
	Language    string       `json:"language,omitempty"`
	Departments []Department `json:"departments,omitempty"`
}

// Validate returns an error if the descriptor contains invalid fields.
func (d *Descriptor) Validate() error {
	if d.ID == "" {
		return Errorf(EINVALID, "document ID required")
	}
	if d.Name == "" {
		return Errorf(EINVALID, "document %q: name required", d.ID)
	}
	if d.Source == "" {
		return Errorf(EINVALID, "document %q: source required", d.ID)
	}
	seen := make(map[string]bool, len(d.Departments))
	for _, dept := range d.Departments {
		if dept.ID == "" || dept.Name == "" {
			return Errorf(EINVALID, "document %q: department ID and name required", d.ID)
		}
		if seen[dept.ID] {
			return Errorf(EINVALID, "document %q: duplicate department %q", d.ID, dept.ID)
		}
		seen[dept.ID] = true
	}
	return nil
}

// AnswerLanguage returns the language answers about this document use.
func (d *Descriptor) AnswerLanguage() string {
	if d.Language == "" {
		return DefaultLanguage
	}
	return d.Language
}

// Department returns the department with the given ID, if any.
func (d *Descriptor) Department(id string) (Department, bool) {
	for _, dept := range d.Departments {
		if dept.ID == id {
			return dept, true
		}
	}
	return Department{}, false
}

// Catalog is the read-only set of configured handbook documents.
// It is built once at startup and safe for concurrent use.
type Catalog struct {
	docs map[string]*Descriptor
	ids  []string
}

// NewCatalog validates descriptors and returns a Catalog over copies of them.
func NewCatalog(descs []Descriptor) (*Catalog, error) {
	c := &Catalog{docs: make(map[string]*Descriptor, len(descs))}
	for _, d := range descs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, ok := c.docs[d.ID]; ok {
			return nil, Errorf(EINVALID, "duplicate document %q", d.ID)
		}
		d.Departments = append([]Department(nil), d.Departments...)
		c.docs[d.ID] = &d
		c.ids = append(c.ids, d.ID)
	}
	sort.Strings(c.ids)
	return c, nil
}

// FindDocument returns the descriptor for a document identifier.
// Returns ENOTFOUND if the document is not configured.
func (c *Catalog) FindDocument(id string) (*Descriptor, error) {
	d, ok := c.docs[id]
	if !ok {
		return nil, Errorf(ENOTFOUND, "unknown faculty %q", id)
	}
	return d, nil
}

// FindDepartment returns a document descriptor and one of its departments.
// Returns ENOTFOUND if either is unknown.
func (c *Catalog) FindDepartment(documentID, departmentID string) (*Descriptor, Department, error) {
	d, err := c.FindDocument(documentID)
	if err != nil {
		return nil, Department{}, err
	}
	dept, ok := d.Department(departmentID)
	if !ok {
		return nil, Department{}, Errorf(ENOTFOUND, "unknown department %q for faculty %q", departmentID, documentID)
	}
	return d, dept, nil
}

// Documents returns all descriptors ordered by ID.
// Callers must not modify the returned descriptors.
func (c *Catalog) Documents() []*Descriptor {
	docs := make([]*Descriptor, 0, len(c.ids))
	for _, id := range c.ids {
		docs = append(docs, c.docs[id])
	}
	return docs
}

// IDs returns all document identifiers in order.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.ids...)
}
