package hydrofile

// Tab-separated recording format markers and field names. The layout follows
// the Lucy spectrum file convention: a keyed header split into File Details,
// Device Details and Setup sections, an optional Export Metadata section
// written only by exporters, a Data marker, one column header line and then
// one row per measurement.
const (
	sectionFileDetails    = "File Details:"
	sectionDeviceDetails  = "Device Details:"
	sectionSetup          = "Setup:"
	sectionExportMetadata = "Export Metadata:"
	sectionData           = "Data:"

	fieldFileType   = "File Type"
	fieldVersion    = "File Version"
	fieldStartDate  = "Start Date"
	fieldStartTime  = "Start Time"
	fieldTimeZone   = "Time Zone"
	fieldAuthor     = "Author"
	fieldClient     = "Client"
	fieldJob        = "Job"
	fieldPersonnel  = "Personnel"
	fieldDevice     = "Device"
	fieldSerial     = "S/N"
	fieldFirmware   = "Firmware"
	fieldDBRefV     = "dB Ref re 1V"
	fieldDBRefUPa   = "dB Ref re 1uPa"
	fieldSampleRate = "Sample Rate [S/s]"
	fieldFFTSize    = "FFT Size"
	fieldBinWidth   = "Bin Width [Hz]"
	fieldWindow     = "Window Function"
	fieldOverlap    = "Overlap [%]"
	fieldPowerCalc  = "Power Calculation"
	fieldAccum      = "Accumulations"

	// Present only in the Export Metadata section; its presence is the
	// structural signature of a file produced by a timeline exporter, which
	// means its header times are already trustworthy.
	fieldExportVersion = "Export Version"

	columnTime       = "Time"
	columnDataPoints = "Data Points"
	rowMarker        = "Datapoint"

	dateLayout  = "2006-01-02"
	clockLayout = "15:04:05"
)

// minRowFields is the smallest number of tab-separated fields a data row can
// have: time, comment, temperature, humidity, sequence and the row marker.
const minRowFields = 6
