package schema

import "github.com/rawbytedev/krds/pkg/value"

func scalar(name string, k value.Kind) Field { return Field{Name: name, Kind: k} }

func stamp(name string) Field { return Field{Name: name, Kind: value.KindLong, Timestamp: true} }

func optional(f Field) Field {
	f.Optional = true
	return f
}

func seq(name string, elem value.Kind) Field {
	return Field{Name: name, Kind: elem, Shape: ShapeSequence}
}

func group(name string, fields ...Field) Field {
	return Field{Name: name, Shape: ShapeGroup, Group: fields}
}

func pairs(name string) Field { return Field{Name: name, Kind: Any, Shape: ShapePairs} }

// inline renders the records of f without their name.
func inline(f Field) Field {
	f.Inline = true
	return f
}

func record(name string, fields ...Field) Entry { return Entry{Name: name, Fields: fields} }

func single(name string, f Field) Entry {
	return Entry{Name: name, Fields: []Field{f}, Unwrap: true}
}

func annotation(name string, extra ...Field) Entry {
	fields := []Field{
		scalar("startPosition", value.KindString),
		scalar("endPosition", value.KindString),
		stamp("creationTime"),
		stamp("lastModificationTime"),
		scalar("template", value.KindString),
	}
	return record(name, append(fields, extra...)...)
}

// AnnotationClasses maps annotation type numbers to their record names.
var AnnotationClasses = map[int32]string{
	0:  "annotation.personal.bookmark",
	1:  "annotation.personal.highlight",
	2:  "annotation.personal.note",
	3:  "annotation.personal.clip_article",
	10: "annotation.personal.handwritten_note",
	11: "annotation.personal.sticky_note",
}

func annotationCache() Entry {
	annotations := group("annotations",
		scalar("type", value.KindInt),
		inline(scalar("tree", value.KindRecord)),
	)
	annotations.Classes = AnnotationClasses
	return single("annotation.cache.object", annotations)
}

func lpr() Entry {
	e := record("lpr",
		scalar("version", Any),
		optional(scalar("position", value.KindString)),
		optional(stamp("time")),
	)
	e.Legacy = []Field{scalar("position", value.KindString)}
	return e
}

// Default describes the records known to appear in reader sidecar files.
var Default = MustRegistry(
	single("clock.data.store", scalar("value", Any)),
	single("dictionary", scalar("value", value.KindString)),
	single("lpu", scalar("value", Any)),
	single("pdf.contrast", scalar("value", Any)),
	single("sync_lpr", scalar("value", value.KindBool)),
	single("tpz.line.spacing", scalar("value", Any)),
	single("XRAY_OTA_UPDATE_STATE", scalar("value", Any)),
	single("XRAY_SHOWING_SPOILERS", scalar("value", Any)),
	single("XRAY_SORTING_STATE", scalar("value", Any)),
	single("XRAY_TAB_STATE", scalar("value", Any)),

	single("dict.prefs.v2", pairs("values")),
	single("EndActions", pairs("values")),
	single("ReaderMetrics", pairs("values")),
	single("StartActions", pairs("values")),
	single("Translator", pairs("values")),
	single("Wikipedia", pairs("values")),

	single("buy.asin.response.data", scalar("value", value.KindString)),
	single("next.in.series.info.data", scalar("value", value.KindString)),
	single("price.info.data", scalar("value", value.KindString)),

	single("erl", scalar("position", value.KindString)),
	lpr(),
	record("fpr",
		scalar("position", value.KindString),
		stamp("time"),
		scalar("timeZoneOffset", Any),
		scalar("country", value.KindString),
		scalar("device", value.KindString),
	),
	record("updated_lpr",
		scalar("position", value.KindString),
		stamp("time"),
		scalar("timeZoneOffset", Any),
		scalar("country", value.KindString),
		scalar("device", value.KindString),
	),

	annotationCache(),
	single("saved.avl.interval.tree", inline(seq("annotations", value.KindRecord))),
	annotation("annotation.personal.bookmark"),
	annotation("annotation.personal.highlight"),
	annotation("annotation.personal.note", scalar("note", value.KindString)),
	annotation("annotation.personal.clip_article"),
	annotation("annotation.personal.handwritten_note", scalar("handwritten_note_nbk_ref", value.KindString)),
	annotation("annotation.personal.sticky_note", scalar("sticky_note_nbk_ref", value.KindString)),

	record("apnx.key",
		scalar("asin", value.KindString),
		scalar("cdeType", value.KindString),
		scalar("sidecarAvailable", value.KindBool),
		seq("oPNToPosition", value.KindInt),
		scalar("first", value.KindInt),
		scalar("unknown1", value.KindInt),
		scalar("unknown2", value.KindInt),
		scalar("pageMap", value.KindString),
	),
	record("fixed.layout.data",
		scalar("unknown1", value.KindBool),
		scalar("unknown2", value.KindBool),
		scalar("unknown3", value.KindBool),
	),
	record("sharing.limits", scalar("accumulated", Any)),
	record("language.store",
		scalar("language", value.KindString),
		scalar("unknown1", value.KindInt),
	),
	record("periodicals.view.state",
		scalar("unknown1", value.KindString),
		scalar("unknown2", value.KindString),
	),
	record("font.prefs",
		scalar("typeface", value.KindString),
		scalar("lineSp", value.KindInt),
		scalar("size", value.KindInt),
		scalar("align", value.KindInt),
		scalar("insetTop", value.KindInt),
		scalar("insetLeft", value.KindInt),
		scalar("insetBottom", value.KindInt),
		scalar("insetRight", value.KindInt),
		scalar("unknown1", value.KindInt),
		optional(scalar("bold", value.KindInt)),
		optional(scalar("userSideloadableFont", value.KindString)),
		optional(scalar("customFontIndex", value.KindInt)),
		optional(scalar("mobi7SystemFont", value.KindString)),
		optional(scalar("mobi7RestoreFont", value.KindBool)),
		optional(scalar("readingPresetSelected", value.KindString)),
		optional(scalar("unknown2", Any)),
	),
	record("purchase.state.data",
		scalar("state", value.KindString),
		stamp("time"),
	),
	record("timer.data.store",
		scalar("on", value.KindBool),
		scalar("readingTimerModel", value.KindRecord),
		scalar("version", value.KindLong),
	),
	record("timer.data.store.v2",
		scalar("on", value.KindBool),
		scalar("readingTimerModel", value.KindRecord),
		scalar("version", value.KindLong),
		scalar("lastOption", value.KindInt),
	),
	record("timer.model",
		scalar("version", Any),
		scalar("totalTime", Any),
		scalar("totalWords", Any),
		scalar("totalPercent", Any),
		inline(scalar("averageCalculator", value.KindRecord)),
	),
	record("timer.average.calculator",
		seq("samples1", value.KindDouble),
		seq("samples2", value.KindDouble),
		inline(seq("normalDistributions", value.KindRecord)),
		inline(seq("outliers", value.KindRecord)),
	),
	record("timer.average.calculator.distribution.normal",
		scalar("count", value.KindLong),
		scalar("sum", value.KindDouble),
		scalar("sumOfSquares", value.KindDouble),
	),
	single("timer.average.calculator.outliers", seq("values", value.KindDouble)),
	record("book.info.store",
		scalar("numberOfWords", value.KindLong),
		scalar("percentOfBook", value.KindDouble),
	),
	single("page.history.store", inline(seq("records", value.KindRecord))),
	record("page.history.record",
		scalar("position", value.KindString),
		stamp("time"),
	),
	record("reader.state.preferences",
		scalar("fontPreferences", value.KindRecord),
		scalar("leftMargin", value.KindInt),
		scalar("rightMargin", value.KindInt),
		scalar("topMargin", value.KindInt),
		scalar("bottomMargin", value.KindInt),
		scalar("unknown1", value.KindBool),
	),

	record("bookmark",
		scalar("position", value.KindInt),
		scalar("timestamp", value.KindTimestamp),
	),
)
