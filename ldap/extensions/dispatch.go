package extensions

import "github.com/ValentinKolb/dLDAP/ldap/ber"

// fieldHandlers maps a context-specific tag to the handler that absorbs
// the matching element during decode.
type fieldHandlers map[byte]func(el ber.Element)

// decodeFields dispatches each element to its tag handler. A tag without
// a handler fails with UnexpectedTypeError unless allowUnknown is set, in
// which case the element is skipped. Value types with an active extension
// point pass allowUnknown; complete value types do not.
func decodeFields(valueType string, elements []ber.Element, handlers fieldHandlers, allowUnknown bool) error {
	for _, el := range elements {
		handler, ok := handlers[el.Tag()]
		if !ok {
			if allowUnknown {
				continue
			}
			return &UnexpectedTypeError{ValueType: valueType, Tag: el.Tag()}
		}
		handler(el)
	}
	return nil
}
