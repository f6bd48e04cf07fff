package capture

import (
	"github.com/tufeigunchu/captrace/pkg/event"
)

// Memory-tracking timers encode their counters into the Registers slice at
// fixed positions. Consumers index by these constants, so the slices always
// have the full length and slots keep their wire value bit pattern (the
// counters are signed, -1 marks an unreadable field).

const (
	systemMemoryTotalKB = iota
	systemMemoryFreeKB
	systemMemoryAvailableKB
	systemMemoryBuffersKB
	systemMemoryCachedKB
	systemMemorySlotCount
)

const (
	cgroupAndProcessMemoryCGroupNameHash = iota
	cgroupAndProcessMemoryCGroupLimitBytes
	cgroupAndProcessMemoryCGroupRssBytes
	cgroupAndProcessMemoryCGroupMappedFileBytes
	cgroupAndProcessMemoryProcessRssAnonKB
	cgroupAndProcessMemorySlotCount
)

const (
	pageFaultsSystemPgFault = iota
	pageFaultsSystemPgMajFault
	pageFaultsCGroupNameHash
	pageFaultsCGroupPgFault
	pageFaultsCGroupPgMajFault
	pageFaultsProcessMinFlt
	pageFaultsProcessMajFlt
	pageFaultsSlotCount
)

// processMemoryUsageEvent decomposes one bundled sample into up to three
// single-instant timers, depending on which sub-records are present.
func (p *Processor) processMemoryUsageEvent(ev *event.MemoryUsageEvent) {
	if ev.SystemMemory != nil {
		p.listener.OnTimer(systemMemoryTimer(ev.TimestampNS, ev.SystemMemory))
	}
	if ev.CGroupMemory != nil && ev.ProcessMemory != nil {
		p.listener.OnTimer(p.cgroupAndProcessMemoryTimer(ev.TimestampNS, ev.CGroupMemory, ev.ProcessMemory))
	}
	if ev.SystemMemory != nil && ev.CGroupMemory != nil && ev.ProcessMemory != nil {
		p.listener.OnTimer(p.pageFaultsTimer(ev.TimestampNS, ev.SystemMemory, ev.CGroupMemory, ev.ProcessMemory))
	}
}

func systemMemoryTimer(timestampNS uint64, system *event.SystemMemoryUsage) Timer {
	registers := make([]uint64, systemMemorySlotCount)
	registers[systemMemoryTotalKB] = uint64(system.TotalKB)
	registers[systemMemoryFreeKB] = uint64(system.FreeKB)
	registers[systemMemoryAvailableKB] = uint64(system.AvailableKB)
	registers[systemMemoryBuffersKB] = uint64(system.BuffersKB)
	registers[systemMemoryCachedKB] = uint64(system.CachedKB)

	return Timer{
		StartNS:   timestampNS,
		EndNS:     timestampNS,
		Type:      TimerSystemMemoryUsage,
		Registers: registers,
	}
}

func (p *Processor) cgroupAndProcessMemoryTimer(timestampNS uint64, cgroup *event.CGroupMemoryUsage, process *event.ProcessMemoryUsage) Timer {
	registers := make([]uint64, cgroupAndProcessMemorySlotCount)
	registers[cgroupAndProcessMemoryCGroupNameHash] = p.internString(cgroup.CGroupName)
	registers[cgroupAndProcessMemoryCGroupLimitBytes] = uint64(cgroup.LimitBytes)
	registers[cgroupAndProcessMemoryCGroupRssBytes] = uint64(cgroup.RssBytes)
	registers[cgroupAndProcessMemoryCGroupMappedFileBytes] = uint64(cgroup.MappedFileBytes)
	registers[cgroupAndProcessMemoryProcessRssAnonKB] = uint64(process.RssAnonKB)

	return Timer{
		StartNS:   timestampNS,
		EndNS:     timestampNS,
		ProcessID: process.ProcessID,
		Type:      TimerCGroupAndProcessMemoryUsage,
		Registers: registers,
	}
}

func (p *Processor) pageFaultsTimer(timestampNS uint64, system *event.SystemMemoryUsage, cgroup *event.CGroupMemoryUsage, process *event.ProcessMemoryUsage) Timer {
	registers := make([]uint64, pageFaultsSlotCount)
	registers[pageFaultsSystemPgFault] = uint64(system.PgFault)
	registers[pageFaultsSystemPgMajFault] = uint64(system.PgMajFault)
	registers[pageFaultsCGroupNameHash] = p.internString(cgroup.CGroupName)
	registers[pageFaultsCGroupPgFault] = uint64(cgroup.PgFault)
	registers[pageFaultsCGroupPgMajFault] = uint64(cgroup.PgMajFault)
	registers[pageFaultsProcessMinFlt] = uint64(process.MinFlt)
	registers[pageFaultsProcessMajFlt] = uint64(process.MajFlt)

	return Timer{
		StartNS:   timestampNS,
		EndNS:     timestampNS,
		ProcessID: process.ProcessID,
		Type:      TimerPageFaults,
		Registers: registers,
	}
}
