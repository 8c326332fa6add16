/*
Package fsrcnn runs FSRCNN super-resolution models through the OpenCV dnn
module.

The network only sees the luma channel. Chroma is resized with bicubic
interpolation and merged back before converting to BGR.

Basic usage:

	// Create a new x4 model
	config := fsrcnn.DefaultConfig(4)
	m, err := fsrcnn.New(config)
	if err != nil {
	    log.Fatal(err)
	}
	defer m.Close()

	// Load the weights
	err = m.LoadModel("models/FSRCNN_x4.pb")
	if err != nil {
	    log.Fatal(err)
	}

	// Upsample a decoded image
	result, err := m.Upsample(img)
	if err != nil {
	    log.Fatal(err)
	}
*/
package fsrcnn
