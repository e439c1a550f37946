package crds

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// CustomResourceDefinition is the apiextensions.k8s.io/v1 document shape
// emitted by crdgen.
type CustomResourceDefinition struct {
	APIVersion string      `yaml:"apiVersion"`
	Kind       string      `yaml:"kind"`
	Metadata   crdMetadata `yaml:"metadata"`
	Spec       crdSpec     `yaml:"spec"`
}

type crdMetadata struct {
	Name string `yaml:"name"`
}

type crdSpec struct {
	Group    string       `yaml:"group"`
	Names    crdNames     `yaml:"names"`
	Scope    string       `yaml:"scope"`
	Versions []crdVersion `yaml:"versions"`
}

type crdNames struct {
	Kind     string `yaml:"kind"`
	ListKind string `yaml:"listKind"`
	Plural   string `yaml:"plural"`
	Singular string `yaml:"singular"`
}

type crdVersion struct {
	Name         string                 `yaml:"name"`
	Served       bool                   `yaml:"served"`
	Storage      bool                   `yaml:"storage"`
	Subresources map[string]struct{}    `yaml:"subresources"`
	Schema       map[string]SchemaProps `yaml:"schema"`
	Columns      []printerColumn        `yaml:"additionalPrinterColumns,omitempty"`
}

type printerColumn struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	JSONPath string `yaml:"jsonPath"`
}

// SchemaProps is the subset of OpenAPI v3 used by the three kinds.
type SchemaProps struct {
	Type        string                 `yaml:"type"`
	Description string                 `yaml:"description,omitempty"`
	Format      string                 `yaml:"format,omitempty"`
	Nullable    bool                   `yaml:"nullable,omitempty"`
	Enum        []string               `yaml:"enum,omitempty"`
	Required    []string               `yaml:"required,omitempty"`
	Properties  map[string]SchemaProps `yaml:"properties,omitempty"`
}

func str(desc string) SchemaProps { return SchemaProps{Type: "string", Description: desc} }

func optionalStr(desc string) SchemaProps {
	return SchemaProps{Type: "string", Description: desc, Nullable: true}
}

func timestamp(desc string) SchemaProps {
	return SchemaProps{Type: "string", Format: "date-time", Description: desc, Nullable: true}
}

func enum(desc string, values []string) SchemaProps {
	return SchemaProps{Type: "string", Description: desc, Enum: values}
}

func object(required []string, props map[string]SchemaProps) SchemaProps {
	return SchemaProps{Type: "object", Required: required, Properties: props}
}

// SchemaFor returns the openAPIV3Schema of kind.
func SchemaFor(kind Kind) (SchemaProps, error) {
	factions := stringsOf(Factions())
	var spec, status SchemaProps
	switch kind {
	case KindManager:
		spec = object([]string{"symbol", "faction", "namespace"}, map[string]SchemaProps{
			"symbol":    str("Agent symbol registered with the game."),
			"faction":   enum("Starting faction.", factions),
			"namespace": str("Namespace that holds the Agent and its Ships."),
		})
		status = object([]string{"checksum"}, map[string]SchemaProps{
			"checksum":    str(""),
			"lastUpdated": timestamp(""),
		})
	case KindAgent:
		spec = object([]string{"symbol", "faction"}, map[string]SchemaProps{
			"symbol":    str("Agent symbol registered with the game."),
			"faction":   enum("Starting faction.", factions),
			"token":     optionalStr("Bearer token; written once at registration."),
			"resetDate": timestamp("Server reset date observed at registration."),
		})
		status = object([]string{"checksum", "shipsInitialized"}, map[string]SchemaProps{
			"checksum":         str("Digest of the starting ship roster."),
			"shipsInitialized": {Type: "boolean", Description: "Starting ships were materialized."},
			"lastUpdated":      timestamp(""),
		})
	case KindShip:
		spec = object([]string{"symbol"}, map[string]SchemaProps{
			"symbol": str("Ship symbol."),
			"role":   optionalStr("Registration role."),
		})
		status = object(nil, map[string]SchemaProps{
			"location":   optionalStr("Current waypoint symbol."),
			"navStatus":  enum("Navigation status.", stringsOf([]NavStatus{NavDocked, NavInOrbit, NavInTransit})),
			"flightMode": enum("Flight mode.", stringsOf([]FlightMode{FlightDrift, FlightStealth, FlightCruise, FlightBurn})),
		})
	default:
		return SchemaProps{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return object([]string{"spec"}, map[string]SchemaProps{
		"spec":   spec,
		"status": {Type: "object", Nullable: true, Properties: status.Properties, Required: status.Required},
	}), nil
}

// CRDFor builds the CustomResourceDefinition document for kind.
func CRDFor(kind Kind) (CustomResourceDefinition, error) {
	schema, err := SchemaFor(kind)
	if err != nil {
		return CustomResourceDefinition{}, err
	}
	var columns []printerColumn
	switch kind {
	case KindAgent:
		columns = []printerColumn{{Name: "Ships", Type: "boolean", JSONPath: ".status.shipsInitialized"}}
	case KindShip:
		columns = []printerColumn{
			{Name: "Location", Type: "string", JSONPath: ".status.location"},
			{Name: "Nav", Type: "string", JSONPath: ".status.navStatus"},
		}
	}
	return CustomResourceDefinition{
		APIVersion: "apiextensions.k8s.io/v1",
		Kind:       "CustomResourceDefinition",
		Metadata:   crdMetadata{Name: kind.Plural() + "." + Group},
		Spec: crdSpec{
			Group: Group,
			Names: crdNames{
				Kind:     string(kind),
				ListKind: string(kind) + "List",
				Plural:   kind.Plural(),
				Singular: kind.Singular(),
			},
			Scope: "Namespaced",
			Versions: []crdVersion{{
				Name:         Version,
				Served:       true,
				Storage:      true,
				Subresources: map[string]struct{}{"status": {}},
				Schema:       map[string]SchemaProps{"openAPIV3Schema": schema},
				Columns:      columns,
			}},
		},
	}, nil
}

// WriteCRDs writes every kind's CRD as YAML documents separated by "---".
func WriteCRDs(w io.Writer) error {
	var buf bytes.Buffer
	for i, kind := range Kinds() {
		crd, err := CRDFor(kind)
		if err != nil {
			return err
		}
		if i > 0 {
			buf.WriteString("---\n")
		}
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(crd); err != nil {
			return fmt.Errorf("crds: encode %s: %w", kind, err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("crds: encode %s: %w", kind, err)
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}
