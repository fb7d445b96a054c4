package hydrofile

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/marine-acoustics/hydroscope/internal/spectrum"
)

// ExportVersion is written into the Export Metadata section of every
// artifact. Its presence marks the file as already carrying canonical header
// times.
const ExportVersion = "Hydroscope v1.0"

const exportAuthor = "Hydroscope Export"

// Ambient readings are not tracked by the engine; exported rows carry the
// same placeholder values the recorder writes when sensors are absent.
const (
	placeholderTemperature = "22.8"
	placeholderHumidity    = "31.1"
)

// Document is the unit an exporter writes: provenance metadata plus the
// samples of one artifact. Zone controls the wall-clock presentation of the
// header and of every row; samples themselves remain canonical.
type Document struct {
	Client    string
	Job       string
	Personnel string

	Device spectrum.DeviceInfo
	Setup  spectrum.SetupInfo

	// Names of the recordings this artifact was assembled from.
	SourceFiles []string

	Zone     *time.Location
	ZoneName string

	Freqs   []float64
	Samples []spectrum.Sample
}

// Write serializes doc to w in the tab-separated recording format. The
// header's Start Date, Start Time and Time Zone are derived from the first
// sample through the same wall-clock conversion the rows use, so a written
// artifact always re-parses with its declared start equal to its first row.
func Write(w io.Writer, doc *Document) error {
	if len(doc.Samples) == 0 {
		return fmt.Errorf("writing artifact: %w", ErrEmptyFile)
	}
	if doc.Zone == nil {
		doc.Zone = time.UTC
		doc.ZoneName = "UTC"
	}

	bw := bufio.NewWriter(w)
	writeHeader(bw, doc)
	writeColumnHeader(bw, doc.Freqs)

	for i, sample := range doc.Samples {
		wall := spectrum.Wall(sample.Instant, doc.Zone)
		bw.WriteString(wall.Format(clockLayout))
		bw.WriteByte('\t')
		bw.WriteString(sample.Comment)
		bw.WriteByte('\t')
		bw.WriteString(placeholderTemperature)
		bw.WriteByte('\t')
		bw.WriteString(placeholderHumidity)
		bw.WriteByte('\t')
		bw.WriteString(strconv.Itoa(i + 1))
		bw.WriteByte('\t')
		bw.WriteString(rowMarker)
		for _, v := range sample.Bins {
			bw.WriteByte('\t')
			bw.WriteString(strconv.FormatFloat(v, 'f', 2, 64))
		}
		bw.WriteByte('\n')
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}
	return nil
}

func writeHeader(bw *bufio.Writer, doc *Document) {
	start := spectrum.Wall(doc.Samples[0].Instant, doc.Zone)

	field := func(key, value string) {
		bw.WriteString(key)
		bw.WriteByte('\t')
		bw.WriteString(value)
		bw.WriteByte('\n')
	}

	bw.WriteString(sectionFileDetails + "\n")
	field(fieldFileType, "Spectrum")
	field(fieldVersion, "5")
	field(fieldStartDate, start.Format(dateLayout))
	field(fieldStartTime, start.Format(clockLayout))
	field(fieldTimeZone, doc.ZoneName)
	field(fieldAuthor, exportAuthor)
	field(fieldClient, doc.Client)
	field(fieldJob, doc.Job)
	field(fieldPersonnel, doc.Personnel)

	bw.WriteString("\n" + sectionDeviceDetails + "\n")
	field(fieldDevice, doc.Device.Model)
	field(fieldSerial, doc.Device.Serial)
	field(fieldFirmware, doc.Device.Firmware)

	bw.WriteString("\n" + sectionSetup + "\n")
	field(fieldDBRefV, strconv.FormatFloat(doc.Setup.DBRefRe1V, 'f', -1, 64))
	field(fieldDBRefUPa, strconv.FormatFloat(doc.Setup.DBRefRe1uPa, 'f', -1, 64))
	field(fieldSampleRate, strconv.Itoa(doc.Setup.SampleRate))
	field(fieldFFTSize, strconv.Itoa(doc.Setup.FFTSize))
	field(fieldBinWidth, strconv.FormatFloat(doc.Setup.BinWidth, 'f', -1, 64))
	field(fieldWindow, doc.Setup.Window)
	field(fieldOverlap, strconv.FormatFloat(doc.Setup.Overlap, 'f', 1, 64))
	field(fieldPowerCalc, doc.Setup.PowerCalc)
	field(fieldAccum, strconv.Itoa(doc.Setup.Accumulations))

	bw.WriteString("\n" + sectionExportMetadata + "\n")
	field(fieldExportVersion, ExportVersion)
	field("Source Files", strconv.Itoa(len(doc.SourceFiles)))
	for i, src := range doc.SourceFiles {
		field(fmt.Sprintf("Source %d", i+1), filepath.Base(src))
	}
	if len(doc.Freqs) > 0 {
		field("Frequency Range", fmt.Sprintf("%.2f - %.2f kHz",
			doc.Freqs[0]/1000, doc.Freqs[len(doc.Freqs)-1]/1000))
	}
	field(columnDataPoints, strconv.Itoa(len(doc.Samples)))

	bw.WriteString("\n" + sectionData + "\n\n")
}

func writeColumnHeader(bw *bufio.Writer, freqs []float64) {
	bw.WriteString(columnTime)
	bw.WriteString("\tComment\tTemperature\tHumidity\tSequence #\t")
	bw.WriteString(columnDataPoints)
	for _, f := range freqs {
		bw.WriteByte('\t')
		bw.WriteString(strconv.FormatFloat(f, 'f', 1, 64))
	}
	bw.WriteByte('\n')
}

// Row serialization cost used for size-budgeted exports: the fixed row
// fields plus roughly eight bytes per bin ("-123.45" and a tab).
const (
	rowFixedBytes  = 40
	binBytes       = 8
	headerOverhead = 1024
)

// EstimateBytes returns the approximate serialized size of an artifact with
// the given row and bin counts.
func EstimateBytes(rows, bins int) uint64 {
	return uint64(headerOverhead) + uint64(rows)*uint64(rowFixedBytes+bins*binBytes)
}

// RowsForBudget returns how many rows of the given bin count fit in a byte
// budget, never fewer than one.
func RowsForBudget(maxBytes uint64, bins int) int {
	perRow := uint64(rowFixedBytes + bins*binBytes)
	if maxBytes <= headerOverhead+perRow {
		return 1
	}
	return int((maxBytes - headerOverhead) / perRow)
}
