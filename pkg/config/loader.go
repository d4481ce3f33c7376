package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/schema"
)

// LoadFile reads a YAML file into out after environment substitution.
func LoadFile(filePath string, out interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path is given by the operator
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
	}
	return Unmarshal(data, out)
}

// Unmarshal parses YAML into out after environment substitution.
func Unmarshal(data []byte, out interface{}) error {
	content := ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(content), out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML")
	}
	return nil
}

// ExpandEnv replaces ${VAR} and ${VAR:-default}. Unset variables without
// a default expand to the empty string; an unterminated reference is left
// as is.
func ExpandEnv(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		ref := content[start+2 : end]
		name, def, hasDefault := strings.Cut(ref, ":-")
		value, ok := os.LookupEnv(name)
		if (!ok || value == "") && hasDefault {
			value = def
		}
		b.WriteString(value)
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}

// MergeColumns replaces the columns key of the job file at path with
// columns, keeping the rest of the document (and any ${VAR} references)
// untouched.
func MergeColumns(path string, columns []schema.ColumnSpec) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is given by the operator
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML")
	}
	if len(doc.Content) == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return errors.New(errors.ErrorTypeConfig, "config file is not a mapping")
	}

	var value yaml.Node
	if err := value.Encode(columns); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode columns")
	}

	replaced := false
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "columns" {
			root.Content[i+1] = &value
			replaced = true
			break
		}
	}
	if !replaced {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "columns"},
			&value)
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to marshal YAML")
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to write config file")
	}
	return nil
}
