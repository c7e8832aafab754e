package nav

// Object indices of the touchscreen project. Genie indices are global per object type,
// so every form draws from the same numbering.

// Keyboard keys reported by the NUMPAD keyboard (index KeyboardNumpad).
const (
	KeyboardNumpad = 0

	KeyBackspace  = 176
	KeySignChange = 107
	KeySave       = 13
	KeyDot        = 110
	KeyPoint      = '.'
	KeyClear      = 'c'
)

// Window buttons.
const (
	BtnGradient     = 2
	BtnOffset       = 3
	BtnNumpadBack   = 8
	BtnRef1         = 9
	BtnCapture1     = 11
	BtnRef2         = 12
	BtnCapture2     = 13
	BtnAutoBack     = 14
	BtnMin          = 17
	BtnMax          = 18
	BtnConfirmYes   = 20
	BtnConfirmNo    = 21
	BtnArm          = 22
	BtnDisarm       = 23
	BtnAlarmMin     = 24
	BtnAlarmMax     = 25
	BtnAlarmReset   = 26
	BtnAckOne       = 27
	BtnAckAll       = 28
	BtnReboot       = 29
	BtnShutdown     = 30
)

// 4D buttons. Indices 0..7 are the CALIBRATE channel toggles.
const (
	Btn4DChannel = 0
	Btn4DAuto    = 11
	Btn4DReset   = 12
)

// Rockers 0..7 select channels on SETUP_ALARM.
const RockerChannel = 0

// Sliders.
const SliderVolume = 0

// Sound object indices.
const (
	SoundPlay   = 0
	SoundVolume = 1
	SoundStop   = 4
)

// Scope objects: channels 1-4 on the first, 5-8 on the second.
const ScopeTraces = 4

// String boxes.
const (
	StrValue      = 0  // 0..7 calibrated values on HOME
	StrCalValue   = 8  // 8..15 coefficients on CALIBRATE
	StrAlarm      = 16 // alarm message on ALARM
	StrNumpad     = 17 // editor buffer on NUMPAD
	StrAutoStatus = 18 // fit result on AUTO
	StrAutoRaw    = 19 // 19..26 raw readings on AUTO
	StrBand       = 27 // 27..34 alarm bands on SETUP_ALARM
	StrNumpadHint = 35 // edit target on NUMPAD
)

// User LEDs 0..7 show the armed state on SETUP_ALARM and alarm state elsewhere.
const LEDChannel = 0

// Status strings.
const (
	StatusOK        = "OK"
	StatusNoChannel = "NO CHANNEL"
)
