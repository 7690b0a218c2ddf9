package reg

// GAHBCFG bits.
const (
	GAHBCFGGlobalInt   = 1 << 0 // Global interrupt enable
	GAHBCFGTxFIFOEmpty = 1 << 7 // TX FIFO empty level: 1 = completely empty
)

// GINTSTS and GINTMSK bits.
const (
	GINTSTSCurMode    = 1 << 0  // Current mode: 1 = host (R)
	GINTSTSOTG        = 1 << 2  // OTG interrupt
	GINTSTSSOF        = 1 << 3  // Start of frame
	GINTSTSRxFLvl     = 1 << 4  // RX FIFO non-empty (R)
	GINTSTSNPTxFEmp   = 1 << 5  // Non-periodic TX FIFO empty (R)
	GINTSTSPortInt    = 1 << 24 // Host port interrupt (R)
	GINTSTSHChInt     = 1 << 25 // Host channels interrupt (R)
	GINTSTSPTxFEmp    = 1 << 26 // Periodic TX FIFO empty (R)
	GINTSTSConIDChng  = 1 << 28 // Connector ID status change (W1C)
	GINTSTSDisconnInt = 1 << 29 // Disconnect detected (W1C)
)

// HCINT and HCINTMSK bits.
const (
	HCINTXferComplete   = 1 << 0  // Transfer completed
	HCINTChHalted       = 1 << 1  // Channel halted
	HCINTAHBErr         = 1 << 2  // AHB error (DMA)
	HCINTStall          = 1 << 3  // STALL response received
	HCINTNAK            = 1 << 4  // NAK response received
	HCINTACK            = 1 << 5  // ACK response received/transmitted
	HCINTNYET           = 1 << 6  // NYET response received
	HCINTXactErr        = 1 << 7  // Transaction error
	HCINTBabbleErr      = 1 << 8  // Babble error
	HCINTFrameOverrun   = 1 << 9  // Frame overrun
	HCINTDataToggleErr  = 1 << 10 // Data toggle error
	HCINTBufferNA       = 1 << 11 // Buffer not available (scatter/gather DMA)
	HCINTExcessXactErr  = 1 << 12 // Excessive transaction errors
	HCINTDescListRollov = 1 << 13 // Descriptor rollover (scatter/gather DMA)
)

// HCCHAR enable/disable bits.
const (
	HCCHARChDis = 1 << 30 // Channel disable
	HCCHARChEna = 1 << 31 // Channel enable
)

// HPRT bits.
const (
	HPRTConnStatus    = 1 << 0  // Port connect status (R)
	HPRTConnDetect    = 1 << 1  // Port connect detected (W1C)
	HPRTEnable        = 1 << 2  // Port enable (W1C: writing 1 disables)
	HPRTEnableChange  = 1 << 3  // Port enable changed (W1C)
	HPRTOvrCurrActive = 1 << 4  // Over-current active (R)
	HPRTOvrCurrChange = 1 << 5  // Over-current changed (W1C)
	HPRTResume        = 1 << 6  // Port resume
	HPRTSuspend       = 1 << 7  // Port suspend
	HPRTReset         = 1 << 8  // Port reset
	HPRTPower         = 1 << 12 // Port power

	// HPRTW1CMask covers the bits a read-modify-write must clear to avoid
	// acknowledging changes or disabling the port by accident.
	HPRTW1CMask = HPRTConnDetect | HPRTEnable | HPRTEnableChange | HPRTOvrCurrChange
)

// HPRT port speed values.
const (
	HPRTSpeedHigh = 0
	HPRTSpeedFull = 1
	HPRTSpeedLow  = 2
)

// HCTSIZ packet ID values.
const (
	PIDData0 = 0
	PIDData2 = 1
	PIDData1 = 2
	PIDSetup = 3 // MDATA for non-control transfers
)

// HCCHAR endpoint types.
const (
	EPTypeControl     = 0
	EPTypeIsochronous = 1
	EPTypeBulk        = 2
	EPTypeInterrupt   = 3
)

// GRXSTSP packet status values in host mode.
const (
	PktStsInData        = 2 // IN data packet received
	PktStsInComplete    = 3 // IN transfer completed
	PktStsDataToggleErr = 5 // Data toggle error
	PktStsChHalted      = 7 // Channel halted
)

// GHWCFG2 architecture values.
const (
	ArchSlaveOnly   = 0
	ArchExternalDMA = 1
	ArchInternalDMA = 2
)

// GHWCFG2 PHY type values.
const (
	HSPHYNotSupported = 0
	HSPHYUTMI         = 1
	HSPHYULPI         = 2
	HSPHYUTMIULPI     = 3

	FSPHYDedicated = 1
)

// GUSBCFG bits.
const (
	GUSBCFGPHYIf16     = 1 << 3 // UTMI+ 16-bit interface
	GUSBCFGULPIUTMISel = 1 << 4 // ULPI selected over UTMI+
	GUSBCFGPHYSel      = 1 << 6 // Dedicated full-speed serial PHY
)

// HCFG FS/LS PHY clock select values.
const (
	HCFGFSLSPHYClk3060 = 0 // 30/60 MHz
	HCFGFSLSPHYClk48   = 1 // 48 MHz
	HCFGFSLSPHYClkMask = 0x3
)

// HFIR and HFNUM field masks.
const (
	HFIRFrameIntervalMask = 0xFFFF
	HFNUMFrameNumberMask  = 0xFFFF
)
