package framing

// dictionaryV2 is the fixed zlib dictionary for SPDY/2 header-block
// compression: the common HTTP method/header/status vocabulary, seeded into
// the deflate/inflate context before the first header block is processed in
// either direction (see fields.Encoder.SetZlibDict / fields.Decoder.SetZlibDict).
// v2 headers carry no leading colon, so the dictionary has none either.
var dictionaryV2 = []byte(
	"optionsgetheadpostputdeletetraceacceptaccept-charsetaccept-encodingaccept-" +
		"languageauthorizationexpectfromhostif-modified-sinceif-matchif-none-matchif-rangeif-unmodifiedsinceme" +
		"ax-forwardsproxy-authorizationrangerefererteuser-agent10010120020120220320420520630030130230330430530630" +
		"740040140240340440540640740840940410411412413414415416417500501502503504505506accept-rangesageeta" +
		"glocationproxy-authenticatepublicretry-afterservervarywarningwww-authenticateallowcontent-basecontent-" +
		"encodingcache-controlconnectiondatetrailertransfer-encodingupgradeviawarningcontent-languagecontent-le" +
		"ngthcontent-locationcontent-md5content-rangecontent-typeetagexpireslast-modifiedset-cookieMondayTuesda" +
		"yWednesdayThursdayFridaySaturdaySundayJanFebMarAprMayJunJulAugSepOctNovDecchunkedtext/htmlimage/pngimage/" +
		"jpegimage/gifapplication/xmlapplication/xhtmltext/plainpublicmax-agecharset=iso-8859-1utf-8gzipdeflateHT" +
		"TP/1.1statusversion\x00url\x00")

// dictionaryV3 is the corresponding dictionary for SPDY/3: the same HTTP
// vocabulary, but led by the ":"-prefixed pseudo-headers v3's header block
// uses in place of v2's plain "method"/"url"/"version"/"status" names (see
// TranslateNamesForVersion). Distinct from dictionaryV2 because the two
// protocol versions don't share a header-name convention to seed a deflate
// dictionary with.
var dictionaryV3 = []byte(
	":method\x00:scheme\x00:path\x00:version\x00:host\x00:status\x00" +
		"optionsgetheadpostputdeletetraceacceptaccept-charsetaccept-encodingaccept-" +
		"languageauthorizationexpectfromhostif-modified-sinceif-matchif-none-matchif-rangeif-unmodifiedsinceme" +
		"ax-forwardsproxy-authorizationrangerefererteuser-agent10010120020120220320420520630030130230330430530630" +
		"740040140240340440540640740840940410411412413414415416417500501502503504505506accept-rangesageeta" +
		"glocationproxy-authenticatepublicretry-afterservervarywarningwww-authenticateallowcontent-basecontent-" +
		"encodingcache-controlconnectiondatetrailertransfer-encodingupgradeviawarningcontent-languagecontent-le" +
		"ngthcontent-locationcontent-md5content-rangecontent-typeetagexpireslast-modifiedset-cookieMondayTuesda" +
		"yWednesdayThursdayFridaySaturdaySundayJanFebMarAprMayJunJulAugSepOctNovDecchunkedtext/htmlimage/pngimage/" +
		"jpegimage/gifapplication/xmlapplication/xhtmltext/plainpublicmax-agecharset=iso-8859-1utf-8gzipdeflateHT" +
		"TP/1.1statusversion\x00url\x00")

// SelectDictionary returns the header-block compression dictionary
// applicable to the given protocol version. v2 and v3 use distinct byte
// strings; a deflate/inflate context seeded with the wrong one fails to
// produce bit-exact output against a real peer of the other version.
func SelectDictionary(version uint16) ([]byte, error) {
	switch version {
	case 2:
		return dictionaryV2, nil
	case 3:
		return dictionaryV3, nil
	default:
		return nil, ErrUnsupportedVersion
	}
}
