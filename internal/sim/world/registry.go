package world

import "railverse.dev/internal/command"

// BuildRegistry wires the full command table against this world. The
// table is the single source of truth for capability flags and pause
// categories.
func (w *World) BuildRegistry() *command.Registry {
	return command.NewRegistry(map[command.CommandID]command.Desc{
		command.CmdBuildTrack: {
			Handler: w.cmdBuildTrack, Name: "CmdBuildTrack",
			Flags: command.CmdAuto | command.CmdNoWater,
			Type:  command.CmdTypeLandscapeConstruction,
		},
		command.CmdRemoveTrack: {
			Handler: w.cmdRemoveTrack, Name: "CmdRemoveTrack",
			Flags: command.CmdAuto,
			Type:  command.CmdTypeLandscapeConstruction,
		},
		command.CmdClearLand: {
			Handler: w.cmdClearLand, Name: "CmdClearLand",
			// Area sweeps demolish whatever they find, so the dry run
			// cannot stand in for the real one.
			Flags: command.CmdAuto | command.CmdNoTest,
			Type:  command.CmdTypeLandscapeConstruction,
		},
		command.CmdTerraform: {
			Handler: w.cmdTerraform, Name: "CmdTerraform",
			Flags: command.CmdAuto | command.CmdNoWater,
			Type:  command.CmdTypeLandscapeConstruction,
		},
		command.CmdBuildObject: {
			Handler: w.cmdBuildObject, Name: "CmdBuildObject",
			Flags: command.CmdAuto | command.CmdNoWater,
			Type:  command.CmdTypeLandscapeConstruction,
		},
		command.CmdBuildVehicle: {
			Handler: w.cmdBuildVehicle, Name: "CmdBuildVehicle",
			Type: command.CmdTypeVehicleConstruction,
		},
		command.CmdSellVehicle: {
			Handler: w.cmdSellVehicle, Name: "CmdSellVehicle",
			Type: command.CmdTypeVehicleConstruction,
		},
		command.CmdStartStopVehicle: {
			Handler: w.cmdStartStopVehicle, Name: "CmdStartStopVehicle",
			Type: command.CmdTypeVehicleManagement,
		},
		command.CmdIncreaseLoan: {
			Handler: w.cmdIncreaseLoan, Name: "CmdIncreaseLoan",
			Type: command.CmdTypeMoneyManagement,
		},
		command.CmdDecreaseLoan: {
			Handler: w.cmdDecreaseLoan, Name: "CmdDecreaseLoan",
			Type: command.CmdTypeMoneyManagement,
		},
		command.CmdGiveMoney: {
			Handler: w.cmdGiveMoney, Name: "CmdGiveMoney",
			Type: command.CmdTypeMoneyManagement,
		},
		command.CmdPlaceSign: {
			Handler: w.cmdPlaceSign, Name: "CmdPlaceSign",
			Flags: command.CmdSpectator | command.CmdStrCtrl,
			Type:  command.CmdTypeOtherManagement,
		},
		command.CmdRenameSign: {
			Handler: w.cmdRenameSign, Name: "CmdRenameSign",
			Flags: command.CmdSpectator | command.CmdStrCtrl,
			Type:  command.CmdTypeOtherManagement,
		},
		command.CmdActivateCompany: {
			Handler: w.cmdActivateCompany, Name: "CmdActivateCompany",
			Flags: command.CmdServer | command.CmdNoEst,
			Type:  command.CmdTypeServerSetting,
		},
		command.CmdPause: {
			Handler: w.cmdPause, Name: "CmdPause",
			Flags: command.CmdServer | command.CmdNoEst,
			Type:  command.CmdTypeServerSetting,
		},
		command.CmdChangeSetting: {
			Handler: w.cmdChangeSetting, Name: "CmdChangeSetting",
			Flags: command.CmdServer | command.CmdNoEst,
			Type:  command.CmdTypeServerSetting,
		},
		command.CmdDesyncCheck: {
			Handler: w.cmdDesyncCheck, Name: "CmdDesyncCheck",
			Flags: command.CmdSpectator | command.CmdClientID | command.CmdLogAux | command.CmdNoEst,
			Type:  command.CmdTypeServerSetting,
		},
	})
}
