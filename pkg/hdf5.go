package depfet

import (
	"fmt"

	"github.com/jmbenlloch/go-hdf5"
)

type EventDataHDF5 struct {
	evt_number int32
	run_number int32
}

type FrameInfoHDF5 struct {
	module     int32
	frame      int32
	trigger    int32
	start_gate int32
}

type ModuleInfoHDF5 struct {
	module int32
	slot   int32
	size_x int32
	size_y int32
}

func openFile(fname string) (*hdf5.File, error) {
	f, err := hdf5.CreateFile(fname, hdf5.F_ACC_TRUNC)
	if err != nil {
		return nil, &ErrOpenFile{Filename: fname, Err: err}
	}
	return f, nil
}

func createGroup(file *hdf5.File, groupName string) (*hdf5.Group, error) {
	g, err := file.CreateGroup(groupName)
	if err != nil {
		return nil, &ErrCreateGroup{GroupName: groupName, Err: err}
	}
	return g, nil
}

// create3dArray creates an extendable [event, sizeX, sizeY] dataset.
func create3dArray(group *hdf5.Group, name string, sizeX int, sizeY int) (*hdf5.Dataset, error) {
	dimsArray := []uint{0, 0, 0}
	unlimitedDims := -1 // H5S_UNLIMITED is -1L
	maxDimsArray := []uint{uint(unlimitedDims), uint(sizeX), uint(sizeY)}
	chunks := []uint{1, uint(sizeX), uint(sizeY)}
	return createArray(group, name, hdf5.T_NATIVE_FLOAT, dimsArray, maxDimsArray, chunks)
}

func createArray(group *hdf5.Group, name string, dtype *hdf5.Datatype, dims []uint, maxDims []uint, chunks []uint) (*hdf5.Dataset, error) {
	file_spaceArray, err := hdf5.CreateSimpleDataspace(dims, maxDims)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer file_spaceArray.Close()

	// create property list
	plistArray, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer plistArray.Close()

	plistArray.SetChunk(chunks)
	if configuration.CompressionLevel > 0 {
		plistArray.SetDeflate(configuration.CompressionLevel)
	}

	// create the dataset
	dsetArray, err := group.CreateDatasetWith(name, dtype, file_spaceArray, plistArray)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	return dsetArray, nil
}

// create2dMatrix creates a fixed size [sizeX, sizeY] dataset and writes data.
func create2dMatrix[T any](group *hdf5.Group, name string, dtype *hdf5.Datatype, data []T, sizeX int, sizeY int) error {
	space, err := hdf5.CreateSimpleDataspace([]uint{uint(sizeX), uint(sizeY)}, nil)
	if err != nil {
		return &ErrCreateTable{TableName: name, Err: err}
	}
	defer space.Close()
	dset, err := group.CreateDataset(name, dtype, space)
	if err != nil {
		return &ErrCreateTable{TableName: name, Err: err}
	}
	if err := dset.Write(&data); err != nil {
		dset.Close()
		return fmt.Errorf("error writing %s: %w", name, err)
	}
	return dset.Close()
}

func createTable(group *hdf5.Group, name string, datatype interface{}) (*hdf5.Dataset, error) {
	dims := []uint{0}
	unlimitedDims := -1 // H5S_UNLIMITED is -1L
	maxDims := []uint{uint(unlimitedDims)}
	file_space, err := hdf5.CreateSimpleDataspace(dims, maxDims)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer file_space.Close()

	// create property list
	plist, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer plist.Close()

	chunks := []uint{32768}
	plist.SetChunk(chunks)
	if configuration.CompressionLevel > 0 {
		plist.SetDeflate(configuration.CompressionLevel)
	}

	// create the memory data type
	dtype, err := hdf5.NewDatatypeFromValue(datatype)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}

	// create the dataset
	dset, err := group.CreateDatasetWith(name, dtype, file_space, plist)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	return dset, nil
}

func writeEntryToTable[T any](dataset *hdf5.Dataset, data T, evtCounter int) error {
	array := []T{data}
	return writeArrayToTable(dataset, &array, evtCounter)
}

func writeArrayToTable[T any](dataset *hdf5.Dataset, data *[]T, evtCounter int) error {
	length := uint(len(*data))
	dims := []uint{length}
	dataspace, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return err
	}
	defer dataspace.Close()

	// extend
	eventsInFile := uint(evtCounter)
	newsize := []uint{eventsInFile + length}
	if err := dataset.Resize(newsize); err != nil {
		return err
	}
	filespace := dataset.Space()
	defer filespace.Close()

	start := []uint{eventsInFile}
	count := []uint{length}
	if err := filespace.SelectHyperslab(start, nil, count, nil); err != nil {
		return err
	}
	return dataset.WriteSubset(data, dataspace, filespace)
}

func write3dArray(dataset *hdf5.Dataset, data *[]float32, evtCounter int, sizeX int, sizeY int) error {
	// extend
	newsize := []uint{uint(evtCounter) + 1, uint(sizeX), uint(sizeY)}
	if err := dataset.Resize(newsize); err != nil {
		return err
	}
	filespace := dataset.Space()
	defer filespace.Close()

	start := []uint{uint(evtCounter), 0, 0}
	count := []uint{1, uint(sizeX), uint(sizeY)}
	if err := filespace.SelectHyperslab(start, nil, count, nil); err != nil {
		return err
	}

	dataspace, err := hdf5.CreateSimpleDataspace(count, nil)
	if err != nil {
		return err
	}
	defer dataspace.Close()

	return dataset.WriteSubset(data, dataspace, filespace)
}
