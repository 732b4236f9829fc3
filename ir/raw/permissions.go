package raw

import "fmt"

// Permissions describes the actions a standard-security document allows.
type Permissions struct {
	Print             bool
	Modify            bool
	Copy              bool
	ModifyAnnotations bool
	FillForms         bool
	ExtractAccessible bool
	Assemble          bool
	PrintHighQuality  bool
}

// AllPermissions grants everything.
func AllPermissions() Permissions {
	return Permissions{
		Print: true, Modify: true, Copy: true, ModifyAnnotations: true,
		FillForms: true, ExtractAccessible: true, Assemble: true, PrintHighQuality: true,
	}
}

// ParsePermissionNames builds a permission set from external names. The
// accepted names are print, copy, annotate, fillForm, accessibility,
// assemble and highPrintQuality; anything else is rejected, not ignored.
func ParsePermissionNames(names []string) (Permissions, error) {
	var p Permissions
	for _, n := range names {
		switch n {
		case "print":
			p.Print = true
		case "copy":
			p.Copy = true
		case "annotate":
			p.ModifyAnnotations = true
		case "fillForm":
			p.FillForms = true
		case "accessibility":
			p.ExtractAccessible = true
		case "assemble":
			p.Assemble = true
		case "highPrintQuality":
			p.PrintHighQuality = true
		default:
			return Permissions{}, fmt.Errorf("unknown permission name %q", n)
		}
	}
	return p, nil
}

// Names returns the external names of the granted permissions, in the fixed
// order ParsePermissionNames accepts them.
func (p Permissions) Names() []string {
	var out []string
	if p.Print {
		out = append(out, "print")
	}
	if p.Copy {
		out = append(out, "copy")
	}
	if p.ModifyAnnotations {
		out = append(out, "annotate")
	}
	if p.FillForms {
		out = append(out, "fillForm")
	}
	if p.ExtractAccessible {
		out = append(out, "accessibility")
	}
	if p.Assemble {
		out = append(out, "assemble")
	}
	if p.PrintHighQuality {
		out = append(out, "highPrintQuality")
	}
	return out
}
