package spdy

// SelectNextProtocol implements the NPN selection algorithm: given the
// peer's advertised protocol list, encoded as TLS NPN presents it (a
// concatenation of length-prefixed, non-null-terminated protocol name
// strings, one byte of length followed by that many bytes of name), it
// picks the highest SPDY version this package supports, falls back to
// "http/1.1" if present, and otherwise reports no overlap.
//
// It returns the selected SPDY version (2 or 3), 0 if the negotiated
// protocol is plain HTTP/1.1 (proto is set to "http/1.1" in that case), or
// -1 if nothing usable was advertised.
func SelectNextProtocol(advertised []byte) (version int, proto string) {
	var sawHTTP11 bool
	best := 0

	i := 0
	for i < len(advertised) {
		l := int(advertised[i])
		i++
		if i+l > len(advertised) {
			break // Truncated entry; stop parsing rather than read past the buffer.
		}
		name := string(advertised[i : i+l])
		i += l

		switch name {
		case "spdy/3":
			if best < 3 {
				best = 3
			}
		case "spdy/2":
			if best < 2 {
				best = 2
			}
		case "http/1.1":
			sawHTTP11 = true
		}
	}

	switch {
	case best != 0:
		return best, "spdy/" + versionSuffix(best)
	case sawHTTP11:
		return 0, "http/1.1"
	default:
		return -1, ""
	}
}

func versionSuffix(version int) string {
	switch version {
	case 2:
		return "2"
	case 3:
		return "3"
	default:
		return ""
	}
}
