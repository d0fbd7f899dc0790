package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileSource reads definitions from a YAML file. It seeds the catalog table
// and serves local runs without a database.
//
//	flat:
//	  - name: sales_daily
//	    regex: 'sales_\d{8}\.csv'
//	    frequency: daily
//	    rules: {delimiter: ";"}
//	zip:
//	  - name: bundle
//	    regex: 'bundle_.*\.zip'
//	    members:
//	      - name: orders
//	        regex: 'orders_.*\.csv'
type FileSource struct {
	Path string
}

type fileDefinition struct {
	Name       string           `yaml:"name"`
	Regex      string           `yaml:"regex"`
	Frequency  string           `yaml:"frequency"`
	FilePrefix string           `yaml:"file_prefix"`
	Rules      map[string]any   `yaml:"rules"`
	Members    []fileDefinition `yaml:"members"`
}

type fileCatalog struct {
	Flat []fileDefinition `yaml:"flat"`
	Zip  []fileDefinition `yaml:"zip"`
}

// Load implements Source.
func (s FileSource) Load(context.Context) ([]Definition, []Definition, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("read catalog file: %w", err)
	}
	return ParseDefinitions(data)
}

// ParseDefinitions decodes a YAML catalog document.
func ParseDefinitions(data []byte) (flat, zip []Definition, err error) {
	var doc fileCatalog
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse catalog file: %w", err)
	}
	if flat, err = convertAll(doc.Flat); err != nil {
		return nil, nil, err
	}
	if zip, err = convertAll(doc.Zip); err != nil {
		return nil, nil, err
	}
	return flat, zip, nil
}

func convertAll(in []fileDefinition) ([]Definition, error) {
	out := make([]Definition, 0, len(in))
	for _, fd := range in {
		d := Definition{
			Name:       fd.Name,
			Regex:      fd.Regex,
			Frequency:  fd.Frequency,
			FilePrefix: fd.FilePrefix,
		}
		if fd.Name == "" || fd.Regex == "" {
			return nil, fmt.Errorf("catalog entry %q: name and regex are required", fd.Name)
		}
		if len(fd.Rules) > 0 {
			raw, err := json.Marshal(fd.Rules)
			if err != nil {
				return nil, fmt.Errorf("pattern %q: %w", fd.Name, err)
			}
			if d.Rules, err = ParseRules(string(raw)); err != nil {
				return nil, fmt.Errorf("pattern %q: %w", fd.Name, err)
			}
		}
		members, err := convertAll(fd.Members)
		if err != nil {
			return nil, fmt.Errorf("member of %s: %w", fd.Name, err)
		}
		if len(members) > 0 {
			d.Members = members
		}
		out = append(out, d)
	}
	return out, nil
}
