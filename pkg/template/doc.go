// Package template implements the tag-based template dialect used for
// email subjects and bodies.
//
// A template source mixes literal text with two tag forms:
//
//   - {$name} — a variable placeholder, substituted via Bind/TryBind
//   - {Name} ... {/Name} — a named region that can be extracted, cleared,
//     or rendered in place ({/} closes the innermost open region)
//
// Anything that does not form a tag is literal text, including a lone "{".
//
// # Rendering semantics
//
// Render never fails. Bound variables are substituted, unbound placeholders
// stay in the output as literal {$name} text, and region markers never
// appear in the output. Rendering is idempotent for a fixed set of
// bindings.
//
// # Per-recipient reuse
//
// Clone produces a deep copy whose bindings are independent of the
// original. This is the intended pattern for sending one parsed template
// to many recipients:
//
//	base, _ := template.Parse("Hi {$recipient_firstname}!")
//	for _, r := range recipients {
//		t := base.Clone()
//		t.TryBind("recipient_firstname", r.FirstName)
//		body := t.Render()
//		// ...
//	}
//
// CloneRegion extracts a named region as an independent sub-template;
// DeleteRegion clears the region body in the parent while leaving the
// surrounding content in place. The common use is a combined source whose
// {Subject} region becomes the subject template and whose remainder becomes
// the message body.
package template
