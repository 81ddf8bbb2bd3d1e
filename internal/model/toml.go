package model

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"dataflow/internal/core"
)

// schemaFile is the top-level TOML document: [database] plus [[tables]].
type schemaFile struct {
	Database tomlDatabase `toml:"database"`
	Tables   []tomlTable  `toml:"tables"`
}

type tomlDatabase struct {
	Name    string `toml:"name"`
	Dialect string `toml:"dialect"`
}

type tomlTable struct {
	Name        string           `toml:"name"`
	Comment     string           `toml:"comment"`
	Columns     []tomlColumn     `toml:"columns"`
	Indexes     []tomlIndex      `toml:"indexes"`
	ForeignKeys []tomlForeignKey `toml:"foreign_keys"`
}

type tomlColumn struct {
	Name       string  `toml:"name"`
	Type       string  `toml:"type"`
	Nullable   bool    `toml:"nullable"`
	PrimaryKey bool    `toml:"primary_key"`
	Unique     bool    `toml:"unique"`
	Default    *string `toml:"default"`
}

type tomlIndex struct {
	Name    string   `toml:"name"`
	Columns []string `toml:"columns"`
	Unique  bool     `toml:"unique"`
}

type tomlForeignKey struct {
	Name   string `toml:"name"`
	Column string `toml:"column"`
	// References is "table.column".
	References string `toml:"references"`
}

// LoadFile reads a TOML schema declaration from disk.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("model: open schema file %q: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a TOML schema declaration and returns a populated registry.
func Load(r io.Reader) (*Registry, error) {
	var sf schemaFile
	if _, err := toml.NewDecoder(r).Decode(&sf); err != nil {
		return nil, fmt.Errorf("model: decode schema: %w", err)
	}
	if sf.Database.Dialect != "" && !core.IsValidDialect(sf.Database.Dialect) {
		return nil, fmt.Errorf("model: unsupported dialect %q; supported: %v",
			sf.Database.Dialect, core.SupportedDialects())
	}

	reg := NewRegistry(sf.Database.Name)
	for i := range sf.Tables {
		t, err := convertTable(&sf.Tables[i])
		if err != nil {
			return nil, fmt.Errorf("model: table %q: %w", sf.Tables[i].Name, err)
		}
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func convertTable(tt *tomlTable) (*core.Table, error) {
	if tt.Name == "" {
		return nil, fmt.Errorf("missing table name")
	}
	t := &core.Table{Name: tt.Name, Comment: tt.Comment}

	for i := range tt.Columns {
		tc := &tt.Columns[i]
		if tc.Name == "" {
			return nil, fmt.Errorf("column %d has no name", i)
		}
		if tc.Type == "" {
			return nil, fmt.Errorf("column %q has no type", tc.Name)
		}
		t.Columns = append(t.Columns, &core.Column{
			Name:       tc.Name,
			TypeRaw:    tc.Type,
			Type:       normalizeDeclaredType(tc.Type),
			Nullable:   tc.Nullable,
			PrimaryKey: tc.PrimaryKey,
			Unique:     tc.Unique,
			Default:    tc.Default,
		})
	}

	for i := range tt.Indexes {
		ti := &tt.Indexes[i]
		if len(ti.Columns) == 0 {
			return nil, fmt.Errorf("index %q has no columns", ti.Name)
		}
		t.Indexes = append(t.Indexes, &core.Index{
			Name:    ti.Name,
			Columns: ti.Columns,
			Unique:  ti.Unique,
		})
	}

	for i := range tt.ForeignKeys {
		tf := &tt.ForeignKeys[i]
		fk, err := parseReference(tf)
		if err != nil {
			return nil, err
		}
		t.ForeignKeys = append(t.ForeignKeys, fk)
	}
	return t, nil
}

func parseReference(tf *tomlForeignKey) (*core.ForeignKey, error) {
	if tf.Column == "" {
		return nil, fmt.Errorf("foreign key has no column")
	}
	parts := strings.SplitN(tf.References, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("foreign key on %q: references must be \"table.column\", got %q",
			tf.Column, tf.References)
	}
	return &core.ForeignKey{
		Name:         tf.Name,
		Column:       tf.Column,
		TargetTable:  parts[0],
		TargetColumn: parts[1],
	}, nil
}
