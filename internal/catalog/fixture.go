package catalog

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/borealmotors/reconcile-cli/internal/model"
)

// LoadCatalogFile reads base model templates from a YAML fixture.
func LoadCatalogFile(path string) ([]model.BaseModelTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: read catalog fixture")
	}

	var doc struct {
		Templates []model.BaseModelTemplate `yaml:"templates"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "catalog: unmarshal catalog fixture")
	}

	for i := range doc.Templates {
		t := &doc.Templates[i]
		if t.Brand == "" || t.ModelFamily == "" || t.ModelYear == 0 {
			return nil, eris.Errorf("catalog: fixture template %d missing brand, model_family or model_year", i)
		}
	}
	return doc.Templates, nil
}

// LoadModifiersFile reads modifier registry entries from a YAML fixture.
// Entries without an explicit confidence get 0.9, the default for
// curated entries.
func LoadModifiersFile(path string) ([]model.OptionModifierRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: read modifiers fixture")
	}

	var doc struct {
		Modifiers []model.OptionModifierRecord `yaml:"modifiers"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "catalog: unmarshal modifiers fixture")
	}

	for i := range doc.Modifiers {
		m := &doc.Modifiers[i]
		if m.Brand == "" || m.Name == "" {
			return nil, eris.Errorf("catalog: fixture modifier %d missing brand or name", i)
		}
		if m.Confidence <= 0 || m.Confidence > 1 {
			m.Confidence = 0.9
		}
		if m.Source == "" {
			m.Source = model.SourceRegistry
		}
	}
	return doc.Modifiers, nil
}

// LoadFieldsFile reads spec field descriptors from a YAML fixture and
// returns an indexed registry.
func LoadFieldsFile(path string) (*model.SpecFieldRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: read fields fixture")
	}

	var doc struct {
		Fields []model.SpecField `yaml:"fields"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "catalog: unmarshal fields fixture")
	}

	for i := range doc.Fields {
		f := &doc.Fields[i]
		if f.Path == "" || f.Kind == "" {
			return nil, eris.Errorf("catalog: fixture field %d missing path or kind", i)
		}
	}
	return model.NewSpecFieldRegistry(doc.Fields), nil
}
