package command

import (
	"github.com/zuluscsi/scsicore/scsi"
	"github.com/zuluscsi/scsicore/sense"
)

func notReadyNoDevice() sense.Info {
	return sense.NotReady(scsi.AscLogicalUnitNotSupported)
}

func notReadyNoMedium() sense.Info {
	return sense.NotReady(scsi.AscMediumNotPresent)
}

func writeProtectedSense() sense.Info {
	return sense.WriteProtected()
}
