package jt9decode

/*------------------------------------------------------------------
 *
 * Purpose:	Memory layout of the region shared with jt9.
 *
 * Description:	jt9 maps the same bytes as a C struct (dec_data_t in
 *		commons.h) which in turn is shared with Fortran (jt9com.f90).
 *		Field order, sizes and padding are the wire format.
 *
 *		The Go structs below are declared so that Go's natural
 *		alignment rules give exactly the C layout: int32, float32
 *		and bool align the same way, and char[] becomes [N]byte.
 *		The tests pin every offset that matters.
 *
 *		Everything is native byte order, which for every platform
 *		jt9 ships on is little-endian.
 *
 *------------------------------------------------------------------*/

import "unsafe"

const (
	NSMAX = 6827 // Spectrum bins.
	NTMAX = MaxWindowSeconds
)

const (
	IPC_SYMBOLS = 0 // Symbol periods in the window.
	IPC_COMMAND = 1 // See CMD_*.
	IPC_ACK     = 2 // See ACK_*.
)

const (
	CMD_IDLE      int32 = 0   // Engine idle, or finished the last decode.
	CMD_START     int32 = 1   // Host requests a decode.
	CMD_TERMINATE int32 = 999 // Host requests shutdown.  Terminal.
)

const (
	ACK_PENDING int32 = -1
	ACK_DONE    int32 = 1
)

// DecParams mirrors dec_data_t.params.
type DecParams struct {
	Nutc         int32 // UTC as integer, HHMM
	Ndiskdat     bool  // true ==> data read from *.wav file
	Ntrperiod    int32 // T/R period, seconds
	NQSOProgress int32
	Nfqso        int32 // User-selected QSO freq, Hz
	Nftx         int32
	Newdat       bool // true ==> new data, must do long FFT
	Npts8        int32
	Nfa          int32 // Low decode limit, Hz
	NfSplit      int32
	Nfb          int32 // High decode limit, Hz
	Ntol         int32 // +/- decoding range around nfqso, Hz
	Kin          int32 // Samples in d2
	Nzhsym       int32
	Nsubmode     int32
	Nagain       bool
	Ndepth       int32
	Lft8apon     bool
	Lapcqonly    bool
	Ljt65apon    bool
	Napwid       int32
	Ntxmode      int32
	Nmode        int32
	Minw         int32
	Nclearave    bool
	MinSync      int32
	Emedelay     float32
	Dttol        float32
	Nlist        int32
	Listutc      [10]int32
	N2pass       int32
	Nranera      int32
	Naggressive  int32
	Nrobust      bool
	NexpDecode   int32
	MaxDrift     int32
	Datetime     [20]byte
	Mycall       [12]byte
	Mygrid       [6]byte
	Hiscall      [12]byte
	Hisgrid      [6]byte
	BEvenSeq     bool
	BSuperfox    bool
	Yymmdd       int32

	// ft8mod additions.
	Mybcall          [12]byte
	Hisbcall         [12]byte
	Ncandthin        int32
	Ndtcenter        int32
	Nft8cycles       int32
	Ntrials10        int32
	Ntrialsrxf10     int32
	Nharmonicsdepth  int32
	Ntopfreq65       int32
	Nprepass         int32
	Nsdecatt         int32
	Nlasttx          int32
	Ndelay           int32
	Nmt              int32
	Nft8rxfsens      int32
	Nft4depth        int32
	Nsecbandchanged  int32
	Nagainfil        bool
	Nstophint        bool
	Nhint            bool
	Fmaskact         bool
	Lmultift8        bool
	Lft8lowth        bool
	Lft8subpass      bool
	Ltxing           bool
	Lhideft8dupes    bool
	Lhound           bool
	Lcommonft8b      bool
	Lmycallstd       bool
	Lhiscallstd      bool
	Lapmyc           bool
	Lmodechanged     bool
	Lbandchanged     bool
	Lenabledxcsearch bool
	Lwidedxcsearch   bool
	Lmultinst        bool
	Lskiptx1         bool
	Ndecoderstart    int32
}

// DecData mirrors dec_data_t.
type DecData struct {
	Ipc    [3]int32
	Ss     [184 * NSMAX]float32
	Savg   [NSMAX]float32
	Sred   [5760]float32
	D2     [NTMAX * SampleRate]int16
	Params DecParams
}

// Sizes jt9 was built with.  A region of any other size is not ours.
const (
	DecDataSize   = 48275376
	DecParamsSize = 344
)

var _ [DecDataSize - unsafe.Sizeof(DecData{})]byte
var _ [unsafe.Sizeof(DecData{}) - DecDataSize]byte

// setCString copies s into a fixed char array, NUL padded and truncated
// to fit, like strncpy.
func setCString(dst []byte, s string) {
	var n = copy(dst, s)
	clear(dst[n:])
}

// cString reads a NUL terminated string out of a fixed char array.
func cString(src []byte) string {
	for i, b := range src {
		if b == 0 {
			return string(src[:i])
		}
	}

	return string(src)
}
