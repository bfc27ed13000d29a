// Package templates renders notification emails from embedded
// html/template files. The mapping from broadcast kind to template is a
// closed switch, so adding a kind is a compile-visible change.
package templates
